package connection

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 60 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second}, // 64s capped
		{8, 60 * time.Second},
		{20, 60 * time.Second},
		{0, 1 * time.Second}, // Clamped to attempt 1
	}

	for _, tt := range tests {
		if got := backoffDelay(base, max, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_LargeAttemptNoOverflow(t *testing.T) {
	got := backoffDelay(time.Second, 60*time.Second, 1000)
	if got != 60*time.Second {
		t.Errorf("backoffDelay(1000) = %v, want cap", got)
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDisconnected, StatusConnecting, true},
		{StatusConnecting, StatusConnected, true},
		{StatusConnected, StatusConnecting, true}, // Transparent reconnect
		{StatusConnected, StatusDisconnected, true},
		{StatusConnecting, StatusError, true},
		{StatusError, StatusConnecting, true}, // Manual retry
		{StatusDisconnected, StatusConnected, false},
		{StatusError, StatusConnected, false},
		{StatusConnected, StatusConnected, true},
	}

	for _, tt := range tests {
		if got := validTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("validTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusError, "error"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
