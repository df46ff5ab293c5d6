package stomp

import "context"

// SubProtocol is the STOMP-over-WebSocket token negotiated when the
// transport opens.
const SubProtocol = "v12.stomp"

// Transport is the message-framed byte stream the connection runs over.
// Implementations must deliver whole messages in order and serialize
// concurrent Send calls.
type Transport interface {
	// Open establishes the transport to a ws/wss endpoint, negotiating
	// the given sub-protocol.
	Open(ctx context.Context, uri string, subProtocol string) error
	// Send transmits one whole message.
	Send(ctx context.Context, payload []byte, binary bool) error
	// Receive blocks until the next whole message arrives.
	Receive(ctx context.Context) ([]byte, error)
	// Close tears the transport down. Safe to call more than once.
	Close() error
	// IsOpen reports whether the transport is currently usable.
	IsOpen() bool
}

// Tap observes every non-heartbeat frame crossing a connection, in
// arrival/transmit order. Tap calls run on the connection's loops and
// must not block.
type Tap interface {
	Inbound(*Frame)
	Outbound(*Frame)
}
