package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/leadstack/leadsync/internal/event"
	"github.com/leadstack/leadsync/internal/registry"
)

// TokenSource supplies the connect token. Implemented by the auth
// package; re-invoked on every attempt so reconnects pick up refreshed
// tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Manager maintains exactly one authenticated live connection per
// session. It owns the lifecycle state machine, the reconnect policy,
// and the decode-and-dispatch path into the subscription registry.
type Manager struct {
	cfg      ManagerConfig
	tokens   TokenSource
	registry *registry.Registry
	logger   *slog.Logger

	mu              sync.Mutex
	status          Status
	attempts        int
	lastErr         error
	fatal           bool
	lastConnectedAt time.Time
	client          *Client
	retryTimer      *time.Timer // At most one pending reconnect timer
	gen             uint64      // Connection generation; stale pumps check it
	closed          bool

	droppedFrames int64
}

// NewManager creates a manager. Nothing connects until Connect is
// called; the instance is torn down with Close at end of session.
func NewManager(cfg ManagerConfig, tokens TokenSource, reg *registry.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		tokens:   tokens,
		registry: reg,
		logger:   logger.With("component", "connection"),
		status:   StatusDisconnected,
	}
}

// Connect opens the connection. No-op when already Connecting or
// Connected. Resolves when the handshake succeeds, fails, or times
// out; transport failures keep retrying in the background with
// backoff, so a non-nil return does not mean the manager gave up.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.status == StatusConnecting || m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	m.setStatusLocked(StatusConnecting)
	m.fatal = false
	gen := m.gen
	m.mu.Unlock()

	return m.establish(ctx, gen)
}

// Disconnect is a user-initiated close: cancels any pending reconnect
// timer, suppresses auto-reconnect, and resets the session state.
func (m *Manager) Disconnect(reason string) {
	m.mu.Lock()
	m.cancelRetryLocked()
	m.gen++
	client := m.client
	m.client = nil
	m.setStatusLocked(StatusDisconnected)
	m.attempts = 0
	m.lastErr = nil
	m.fatal = false
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
	m.logger.Info("disconnected", "reason", reason)
}

// Close tears the manager down for good (logout). Subsequent Connect
// calls fail with ErrManagerClosed.
func (m *Manager) Close() {
	m.Disconnect("logout")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Status returns the current lifecycle status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns a copy of the full connection state.
func (m *Manager) Snapshot() StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := StateSnapshot{
		Status:            m.status,
		ReconnectAttempts: m.attempts,
		Fatal:             m.fatal,
		LastConnectedAt:   m.lastConnectedAt,
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}

// DroppedFrames reports how many malformed frames were discarded.
func (m *Manager) DroppedFrames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.droppedFrames
}

// establish runs one connect attempt: token, dial, handshake. On
// success it installs the client and re-issues subscriptions; on
// failure it classifies the error and schedules the next attempt. gen
// is the generation the attempt was issued under; a Disconnect during
// the attempt bumps it, so the result is discarded instead of written
// over a session that no longer wants this connection.
func (m *Manager) establish(ctx context.Context, gen uint64) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return m.connectFailed(gen, &AuthError{Reason: err.Error()})
	}
	if token == "" {
		m.mu.Lock()
		if !m.closed && m.gen == gen && m.status == StatusConnecting {
			m.lastErr = ErrEmptyToken
			m.fatal = true
			m.setStatusLocked(StatusError)
		}
		m.mu.Unlock()
		return ErrEmptyToken
	}

	client := NewClient(m.cfg.clientConfig(token), m.logger)
	if err := client.Connect(ctx); err != nil {
		return m.connectFailed(gen, err)
	}

	m.mu.Lock()
	if m.closed || m.gen != gen || m.status != StatusConnecting {
		// The session stopped wanting this connection while the
		// handshake was in flight.
		m.mu.Unlock()
		client.Close()
		if m.closed {
			return ErrManagerClosed
		}
		return nil
	}
	m.cancelRetryLocked()
	m.gen++
	pumpGen := m.gen
	m.client = client
	m.setStatusLocked(StatusConnected)
	m.attempts = 0
	m.lastErr = nil
	m.fatal = false
	m.lastConnectedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("connected", "url", m.cfg.URL)

	go m.pump(client, pumpGen)
	m.resubscribe(client)
	return nil
}

// connectFailed records a failed attempt. Fatal errors stop the
// machine; anything else schedules a backoff retry.
func (m *Manager) connectFailed(gen uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.gen != gen || m.status != StatusConnecting {
		// Disconnect won the race with this attempt; nothing to record.
		return err
	}

	m.lastErr = err
	if IsFatal(err) {
		m.fatal = true
		m.setStatusLocked(StatusError)
		m.logger.Error("connect rejected, re-authentication required", "error", err)
		return err
	}

	m.logger.Warn("connect failed", "error", err)
	m.scheduleRetryLocked()
	return err
}

// scheduleRetryLocked arms the single reconnect timer, or parks the
// manager in a persistent Error state once attempts are exhausted.
func (m *Manager) scheduleRetryLocked() {
	if m.closed || m.retryTimer != nil {
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.setStatusLocked(StatusError)
		m.logger.Error("reconnect attempts exhausted, manual retry required",
			"attempts", m.attempts,
		)
		return
	}

	delay := backoffDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, m.attempts+1)
	m.setStatusLocked(StatusConnecting)
	m.logger.Info("scheduling reconnect",
		"attempt", m.attempts+1,
		"delay", delay,
	)
	m.retryTimer = time.AfterFunc(delay, m.retryNow)
}

// retryNow fires when the reconnect timer expires.
func (m *Manager) retryNow() {
	m.mu.Lock()
	m.retryTimer = nil
	if m.closed || m.status != StatusConnecting {
		m.mu.Unlock()
		return
	}
	m.attempts++
	gen := m.gen
	m.mu.Unlock()

	// establish schedules the next attempt itself on failure.
	m.establish(context.Background(), gen)
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// pump forwards one client's frames and errors until the connection
// dies. gen guards against a stale pump acting on a newer connection.
func (m *Manager) pump(client *Client, gen uint64) {
	for {
		select {
		case <-client.Done():
			return

		case err := <-client.Errors():
			m.connectionLost(client, gen, err)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			m.handleFrame(client, gen, msg)
		}
	}
}

// connectionLost handles a transport-level failure of the current
// connection: recoverable errors follow the reconnect path, fatal ones
// park the machine in Error.
func (m *Manager) connectionLost(client *Client, gen uint64, err error) {
	client.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.gen != gen || m.status != StatusConnected {
		return
	}
	m.client = nil
	m.lastErr = err

	if IsFatal(err) {
		m.fatal = true
		m.setStatusLocked(StatusError)
		m.logger.Error("connection terminated, re-authentication required", "error", err)
		return
	}

	m.logger.Warn("connection lost", "error", err)
	m.scheduleRetryLocked()
}

// handleFrame decodes one inbound frame and dispatches it. A malformed
// frame is dropped and logged; the stream continues.
func (m *Manager) handleFrame(client *Client, gen uint64, msg TimestampedMessage) {
	ev, err := event.Decode(msg.Data, msg.ReceivedAt)
	if err != nil {
		m.mu.Lock()
		m.droppedFrames++
		m.mu.Unlock()
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	if ev.Type == event.Unauthorized {
		// Mid-stream auth revocation is terminal.
		m.connectionLost(client, gen, &AuthError{Reason: authReason(msg.Data)})
		return
	}

	m.registry.Dispatch(ev)
}

// resubscribe re-issues server-side subscriptions for every event name
// currently registered. Transparent to consumers.
func (m *Manager) resubscribe(client *Client) {
	names := m.registry.EventNames()
	if len(names) == 0 {
		return
	}

	cmd, _ := json.Marshal(subscribeCommand{Type: "subscribe", Events: names})
	if err := client.Send(cmd); err != nil {
		m.logger.Warn("resubscribe failed", "error", err, "events", len(names))
		return
	}
	m.logger.Debug("resubscribed", "events", len(names))
}

func (m *Manager) setStatusLocked(to Status) {
	if !validTransition(m.status, to) {
		m.logger.Error("invalid status transition",
			"from", m.status,
			"to", to,
		)
		return
	}
	m.status = to
}
