package blip

import "bytes"

// propertyDictionary lists the property strings common enough to abbreviate
// to a single byte on the wire. Index 0 is unused; a dictionary reference to
// propertyDictionary[i] is the single byte i followed immediately by NUL, for
// i in [1, len(propertyDictionary)).
var propertyDictionary = [...]string{
	"", // unused — entry 0 never appears on the wire
	"Profile",
	"Error-Code",
	"Error-Domain",
	"Content-Type",
	"application/json",
	"application/octet-stream",
	"text/plain; charset=UTF-8",
	"text/xml",
	"Accept",
	"Cache-Control",
	"must-revalidate",
	"If-Match",
	"If-None-Match",
	"Location",
}

var propertyDictionaryIndex = func() map[string]byte {
	m := make(map[string]byte, len(propertyDictionary))
	for i := 1; i < len(propertyDictionary); i++ {
		m[propertyDictionary[i]] = byte(i)
	}
	return m
}()

// appendCString writes s as a NUL-terminated string, substituting a
// dictionary byte when s exactly matches an entry.
func appendCString(dst []byte, s string) ([]byte, error) {
	if idx, ok := propertyDictionaryIndex[s]; ok {
		return append(dst, idx, 0), nil
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return dst, ErrBadProperty
	}
	dst = append(dst, s...)
	return append(dst, 0), nil
}

// readCString decodes a NUL-terminated or dictionary-abbreviated string at
// the start of data, returning the string and the number of bytes consumed.
func readCString(data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, ErrBadProperties
	}
	first := data[0]
	if first != 0 && int(first) < len(propertyDictionary) && len(data) > 1 && data[1] == 0 {
		return propertyDictionary[first], 2, nil
	}
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", 0, ErrBadProperties
	}
	return string(data[:idx]), idx + 1, nil
}
