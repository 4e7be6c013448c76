package domain

// Status is the connection state of a chat session.
type Status int

const (
	// StatusDisconnected means no transport is open or opening.
	StatusDisconnected Status = iota
	// StatusConnecting means a dial is in flight.
	StatusConnecting
	// StatusConnected means the transport is open and frames may be sent.
	StatusConnected
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
