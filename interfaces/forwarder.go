package interfaces

import "context"

// Forwarder submits outgoing messages over a mail-submission transport.
type Forwarder interface {
	// TestConnection opens the transport, performs the configured security
	// handshake and authentication, then tears down. Used only for startup
	// validation.
	TestConnection(ctx context.Context) error
	// Send transmits a raw message. The transport is torn down on both
	// success and failure paths.
	Send(ctx context.Context, from, recipient string, message []byte) error
}
