package connection

import (
	"context"
	"time"
)

// StatusReporter is the minimal status projection the UI layer reads,
// plus the manual retry action for the persistent-error state.
type StatusReporter struct {
	manager *Manager
}

// NewStatusReporter wraps a manager.
func NewStatusReporter(m *Manager) *StatusReporter {
	return &StatusReporter{manager: m}
}

// Projection is the simplified status document.
type Projection struct {
	State             string    `json:"state"` // "connecting", "connected", "disconnected", "error"
	ReconnectAttempts int       `json:"reconnect_attempts"`
	Fatal             bool      `json:"fatal,omitempty"` // Re-authentication required
	LastError         string    `json:"last_error,omitempty"`
	LastConnectedAt   time.Time `json:"last_connected_at,omitzero"`
}

// Status returns the current projection.
func (r *StatusReporter) Status() Projection {
	snap := r.manager.Snapshot()
	return Projection{
		State:             snap.Status.String(),
		ReconnectAttempts: snap.ReconnectAttempts,
		Fatal:             snap.Fatal,
		LastError:         snap.LastError,
		LastConnectedAt:   snap.LastConnectedAt,
	}
}

// Retry re-attempts the connection. No effect while already connecting
// or connected.
func (r *StatusReporter) Retry(ctx context.Context) error {
	switch r.manager.Status() {
	case StatusConnecting, StatusConnected:
		return nil
	}
	return r.manager.Connect(ctx)
}
