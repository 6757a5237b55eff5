package machine

import "time"

// Conn is the line-oriented connection the protocol runs over.
//
// *link.Link satisfies it.
type Conn interface {
	// ReadLine returns the next line or whatever partial data arrived
	// within timeout; an empty result means nothing arrived.
	ReadLine(timeout time.Duration) ([]byte, error)
	Write(p []byte) (int, error)

	// ResetInputBuffer discards stale input before a new exchange.
	ResetInputBuffer()
}
