package signal

// Transport abstracts the connection to the room relay for both roles.
// Client implements it over a WebSocket; tests use an in-process pipe.
type Transport interface {
	// Send emits one message to the relay.
	Send(msg Message) error

	// Messages returns the channel of incoming messages. Closed when the
	// connection drops.
	Messages() <-chan Message

	// Connected reports whether the transport is usable right now.
	Connected() bool

	// SetDisconnectHandler sets the callback for when the connection is
	// lost. Not invoked on an explicit Close.
	SetDisconnectHandler(handler func())

	// Close shuts down the transport.
	Close()
}
