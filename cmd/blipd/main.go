// Command blipd is a small demo BLIP peer: it can listen for WebSocket
// connections and echo requests back, or dial a listening peer and send
// one request.
package main

func main() {
	Execute()
}
