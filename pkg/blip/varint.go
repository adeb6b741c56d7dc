package blip

// BLIP varints are little-endian base-128: the low 7 bits of each byte
// carry data, the high bit signals "more bytes follow". Values are capped
// at 5 bytes and must fit in 31 bits — an encoding that would need a 6th
// byte, or whose value's top bit would land at or above bit 31, decodes to
// ErrBadVarint instead of a wider or negative number.
const maxVarintBytes = 5
const maxVarintValue = 1 << 31

// appendVarint appends v's varint encoding to dst and returns the result.
func appendVarint(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// readVarint decodes a varint at the start of data, returning the value
// and the number of bytes consumed.
func readVarint(data []byte) (v uint32, n int, err error) {
	var result uint64
	for i := 0; i < maxVarintBytes; i++ {
		if i >= len(data) {
			return 0, 0, ErrBadVarint
		}
		b := data[i]
		result |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			if result >= maxVarintValue {
				return 0, 0, ErrBadVarint
			}
			return uint32(result), i + 1, nil
		}
	}
	return 0, 0, ErrBadVarint
}

// varintLen returns the number of bytes appendVarint would emit for v.
func varintLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
