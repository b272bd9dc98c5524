package dmx

// Sender is one output backend (serial adapter or Art-Net node). The
// transmitter drives it; it never schedules itself.
type Sender interface {
	// Connect opens the link. Called once, from a goroutine the caller
	// owns; Send before a successful Connect must report not-connected
	// via Connected, not block.
	Connect() error

	// Connected reports whether the link is usable right now.
	Connected() bool

	// Send emits one complete frame for the universe. Framing and
	// timing are the backend's business.
	Send(u Universe) error

	// Close releases the link. Safe to call more than once.
	Close() error
}
