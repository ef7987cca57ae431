package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrEmptyToken        = errors.New("connect requires a non-empty token")
	ErrHandshakeTimeout  = errors.New("handshake timeout")
	ErrHeartbeatTimeout  = errors.New("heartbeat timeout")
	ErrRetriesExhausted  = errors.New("reconnect attempts exhausted")
	ErrManagerClosed     = errors.New("connection manager closed")
	ErrServerClosed      = errors.New("server closed connection")
)

// AuthError is a fatal authentication rejection. It is never retried;
// the session must re-authenticate.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// IsFatal reports whether err must not trigger a reconnect.
func IsFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// TimestampedMessage wraps raw frame bytes with the local receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// subscribeCommand re-issues server-side subscriptions after connect.
type subscribeCommand struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

// heartbeatFrame is the liveness probe sent while Connected.
type heartbeatFrame struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"` // Unix milliseconds
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL               string        // Push endpoint (wss://...)
	Token             string        // Bearer token for the upgrade request
	HandshakeTimeout  time.Duration // Dial + connection-acknowledged deadline
	HeartbeatInterval time.Duration // Probe send interval while connected
	HeartbeatTimeout  time.Duration // Max silence before the link is declared dead
	WriteTimeout      time.Duration // Write deadline for sends
	BufferSize        int           // Inbound message channel capacity
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	URL                  string
	HandshakeTimeout     time.Duration
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	WriteTimeout         time.Duration
	BufferSize           int
	ReconnectBaseDelay   time.Duration // Delay before the first reconnect attempt
	ReconnectMaxDelay    time.Duration // Backoff cap
	MaxReconnectAttempts int           // Failed attempts before a persistent Error
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HandshakeTimeout:     10 * time.Second,
		HeartbeatInterval:    15 * time.Second,
		HeartbeatTimeout:     45 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1000,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

func (c ManagerConfig) clientConfig(token string) ClientConfig {
	return ClientConfig{
		URL:               c.URL,
		Token:             token,
		HandshakeTimeout:  c.HandshakeTimeout,
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
		WriteTimeout:      c.WriteTimeout,
		BufferSize:        c.BufferSize,
	}
}
