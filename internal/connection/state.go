package connection

import "time"

// Status is the lifecycle state of the session connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StateSnapshot is a point-in-time copy of the manager's state.
type StateSnapshot struct {
	Status            Status
	ReconnectAttempts int
	LastError         string
	Fatal             bool // Set when LastError requires re-authentication
	LastConnectedAt   time.Time
}

// validTransition encodes the allowed status edges. Connected is only
// reachable from Connecting.
func validTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch to {
	case StatusConnecting:
		return true // Reachable from any state (connect, retry, transparent reconnect)
	case StatusConnected:
		return from == StatusConnecting
	case StatusDisconnected, StatusError:
		return true
	}
	return false
}

// backoffDelay returns the wait before reconnect attempt n (1-based):
// min(base * 2^(n-1), cap).
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap || d <= 0 {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
