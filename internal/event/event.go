package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Canonical event names. The wire historically carried a mix of
// kebab-case and snake_case; kebab-case is canonical and snake_case
// frames are normalized at decode, so everything past this package
// sees exactly one spelling.
const (
	ConnectionAcknowledged = "connection-acknowledged"
	LeadCreated            = "lead-created"
	LeadUpdated            = "lead-updated"
	LeadEnriched           = "lead-enriched"
	LeadDeleted            = "lead-deleted"
	AgentStatusUpdate      = "agent-status-update"
	JobProgress            = "job-progress"
	JobCompleted           = "job-completed"
	JobFailed              = "job-failed"
	QuotaUpdated           = "quota-updated"
	EnrichmentUpdate       = "enrichment-update"
	Heartbeat              = "heartbeat"
	HeartbeatResponse      = "heartbeat-response"
	Unauthorized           = "unauthorized"
)

// EntityNames lists the events that describe entity state and are
// therefore journaled and applied to the cache.
var EntityNames = []string{
	LeadCreated,
	LeadUpdated,
	LeadEnriched,
	LeadDeleted,
	AgentStatusUpdate,
	JobProgress,
	JobCompleted,
	JobFailed,
	QuotaUpdated,
	EnrichmentUpdate,
}

// Envelope is one inbound event. Payload is the full raw frame; the
// core inspects only the type, timestamp, and entity identifier and
// leaves the rest to the upstream producer.
type Envelope struct {
	Type       string
	Timestamp  time.Time // Producer timestamp (ts field), ReceivedAt if absent
	ReceivedAt time.Time // Local receive time
	Payload    json.RawMessage
}

// ProtocolError marks a malformed frame. The offending frame is
// dropped and logged; the stream continues.
type ProtocolError struct {
	Reason string
	Frame  []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// envelopeWire is the minimal frame header.
type envelopeWire struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"` // Unix milliseconds
}

// Normalize maps a wire event name to its canonical form.
func Normalize(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Decode parses a raw frame into an Envelope, normalizing the event
// name. Returns *ProtocolError for frames the stream should drop.
func Decode(frame []byte, receivedAt time.Time) (Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, &ProtocolError{Reason: err.Error(), Frame: frame}
	}
	if wire.Type == "" {
		return Envelope{}, &ProtocolError{Reason: "missing type field", Frame: frame}
	}

	ts := receivedAt
	if wire.TS > 0 {
		ts = time.UnixMilli(wire.TS)
	}

	return Envelope{
		Type:       Normalize(wire.Type),
		Timestamp:  ts,
		ReceivedAt: receivedAt,
		Payload:    json.RawMessage(frame),
	}, nil
}
