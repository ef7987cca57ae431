package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadstack/leadsync/internal/event"
)

// Client is a single WebSocket connection to the push endpoint. It is
// single-use: a failed or closed client is discarded and the Manager
// builds a fresh one for the next attempt.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastSeenAt time.Time // Any inbound frame counts as liveness
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the endpoint and completes the handshake: the upgrade
// request carries the bearer token, and the server must answer with a
// connection-acknowledged frame within the handshake timeout. An
// unauthorized frame or a 401/403 upgrade response yields *AuthError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &AuthError{Reason: fmt.Sprintf("upgrade rejected with %d", resp.StatusCode)}
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	if err := c.awaitAck(conn); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastSeenAt = time.Now()
	c.mu.Unlock()

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// awaitAck reads frames until the server acknowledges the connection.
// Frames arriving before the ack are buffered for the read loop.
func (c *Client) awaitAck(conn *websocket.Conn) error {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				return ErrHandshakeTimeout
			}
			return fmt.Errorf("handshake read: %w", err)
		}

		ev, err := event.Decode(frame, time.Now())
		if err != nil {
			c.logger.Warn("dropping malformed handshake frame", "error", err)
			continue
		}

		switch ev.Type {
		case event.ConnectionAcknowledged:
			return nil
		case event.Unauthorized:
			return &AuthError{Reason: authReason(frame)}
		default:
			select {
			case c.messages <- TimestampedMessage{Data: frame, ReceivedAt: ev.ReceivedAt}:
			default:
				c.logger.Warn("message buffer full during handshake, dropping frame")
			}
		}
	}
}

// authReason pulls the server's stated reason out of an unauthorized
// frame, if present.
func authReason(frame []byte) string {
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(frame, &body); err == nil {
		if body.Reason != "" {
			return body.Reason
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return "unauthorized"
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}
	return nil
}

// Send writes one frame.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the inbound frame channel.
func (c *Client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the connection error channel. At most one error is
// delivered; after that the client is dead.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Done is closed when the client is explicitly closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// IsConnected reports current transport state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// fail reports a terminal connection error once.
func (c *Client) fail(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop pumps inbound frames into the messages channel.
func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close()
			select {
			case <-c.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.fail(ErrServerClosed)
				} else {
					c.fail(err)
				}
			}
			return
		}

		c.mu.Lock()
		c.lastSeenAt = receivedAt
		c.mu.Unlock()

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping frame")
		}
	}
}

// heartbeatLoop sends liveness probes and watches for silence. A link
// with no inbound traffic for HeartbeatTimeout is declared dead even
// without a transport-level close.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			lastSeen := c.lastSeenAt
			c.mu.RUnlock()

			if time.Since(lastSeen) > c.cfg.HeartbeatTimeout {
				c.logger.Warn("no traffic within heartbeat timeout, connection stale",
					"last_seen", lastSeen,
					"timeout", c.cfg.HeartbeatTimeout,
				)
				c.fail(ErrHeartbeatTimeout)
				return
			}

			probe, _ := json.Marshal(heartbeatFrame{
				Type: event.Heartbeat,
				TS:   time.Now().UnixMilli(),
			})
			if err := c.Send(probe); err != nil {
				select {
				case <-c.done:
				default:
					c.fail(fmt.Errorf("heartbeat send: %w", err))
				}
				return
			}
		}
	}
}
