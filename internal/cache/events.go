package cache

import (
	"encoding/json"

	"github.com/leadstack/leadsync/internal/api"
	"github.com/leadstack/leadsync/internal/event"
	"github.com/leadstack/leadsync/internal/model"
)

// Event payload shapes. Created and quota events carry the full
// entity document; everything else is a flat partial keyed by id.

type leadCreatedWire struct {
	Lead api.APILead `json:"lead"`
}

type leadUpdatedWire struct {
	ID string `json:"id"`
	model.LeadPatch
}

type leadEnrichedWire struct {
	ID         string         `json:"id"`
	LeadID     string         `json:"lead_id"` // Older producer spelling
	Enrichment map[string]any `json:"enrichment"`
	Score      *int           `json:"score"`
}

type leadDeletedWire struct {
	ID string `json:"id"`
}

type agentStatusWire struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Status string  `json:"status"`
	TaskID *string `json:"task_id"`
}

type jobProgressWire struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Progress *int   `json:"progress"`
}

type jobCompletedWire struct {
	ID        string `json:"id"`
	LeadCount *int   `json:"lead_count"`
}

type jobFailedWire struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type quotaUpdatedWire struct {
	Quota api.APIQuota `json:"quota"`
}

// dropPayload logs a payload the synchronizer cannot apply. The event
// is discarded; the stream continues.
func (s *Synchronizer) dropPayload(ev event.Envelope, reason string) {
	s.logger.Warn("dropping event payload",
		"event", ev.Type,
		"reason", reason,
	)
}

// applyLeadCreated inserts a lead, replacing any optimistic
// placeholder for the same logical entity in place.
func (s *Synchronizer) applyLeadCreated(ev event.Envelope) {
	var wire leadCreatedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.Lead.ID == "" {
		s.dropPayload(ev, "missing lead id")
		return
	}

	lead := wire.Lead.ToModel()
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = ev.Timestamp
	}
	key := LeadKey(lead.ID)

	// Drop the optimistic placeholder this event confirms, if any.
	if lead.ClientRef != "" {
		s.resolvePendingCreate(lead.ClientRef)
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if s.state.deletedAfterLocked(key, ev.Timestamp) {
		return
	}
	if stale(s.state.entries[key], ev.Timestamp) {
		return
	}

	s.state.setLocked(Entry{
		Key:       key,
		Value:     cloneLead(lead),
		UpdatedAt: ev.Timestamp,
		Origin:    OriginServer,
	})
}

// applyLeadUpdated merges a partial payload into the existing lead.
// Fields the payload doesn't mention survive. An update for an unknown
// key materializes a placeholder rather than discarding the event.
func (s *Synchronizer) applyLeadUpdated(ev event.Envelope) {
	var wire leadUpdatedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing lead id")
		return
	}
	key := LeadKey(wire.ID)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if s.state.deletedAfterLocked(key, ev.Timestamp) {
		return
	}

	existing := s.state.entries[key]
	if stale(existing, ev.Timestamp) {
		return
	}

	if existing == nil {
		lead := model.Lead{ID: wire.ID, UpdatedAt: ev.Timestamp}
		wire.LeadPatch.Apply(&lead)
		s.state.setLocked(Entry{
			Key:         key,
			Value:       lead,
			UpdatedAt:   ev.Timestamp,
			Origin:      OriginServer,
			Placeholder: true,
		})
		s.logger.Debug("materialized placeholder for unknown lead", "id", wire.ID)
		return
	}

	lead := cloneLead(existing.Value.(model.Lead))
	wire.LeadPatch.Apply(&lead)
	lead.UpdatedAt = ev.Timestamp

	s.state.setLocked(Entry{
		Key:         key,
		Value:       lead,
		UpdatedAt:   ev.Timestamp,
		Origin:      OriginServer,
		Placeholder: existing.Placeholder,
	})
}

// applyLeadEnriched merges pipeline-produced attributes into the lead.
func (s *Synchronizer) applyLeadEnriched(ev event.Envelope) {
	var wire leadEnrichedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	id := wire.ID
	if id == "" {
		id = wire.LeadID
	}
	if id == "" {
		s.dropPayload(ev, "missing lead id")
		return
	}
	key := LeadKey(id)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if s.state.deletedAfterLocked(key, ev.Timestamp) {
		return
	}

	existing := s.state.entries[key]
	if stale(existing, ev.Timestamp) {
		return
	}

	var lead model.Lead
	placeholder := existing == nil
	if existing != nil {
		lead = cloneLead(existing.Value.(model.Lead))
		placeholder = existing.Placeholder
	} else {
		lead = model.Lead{ID: id}
	}

	if len(wire.Enrichment) > 0 {
		if lead.Enrichment == nil {
			lead.Enrichment = make(map[string]any, len(wire.Enrichment))
		}
		for k, v := range wire.Enrichment {
			lead.Enrichment[k] = v
		}
	}
	if wire.Score != nil {
		lead.Score = *wire.Score
	}
	lead.UpdatedAt = ev.Timestamp

	s.state.setLocked(Entry{
		Key:         key,
		Value:       lead,
		UpdatedAt:   ev.Timestamp,
		Origin:      OriginServer,
		Placeholder: placeholder,
	})
}

// applyLeadDeleted removes the lead. Safe to replay: a second delivery
// finds nothing to remove.
func (s *Synchronizer) applyLeadDeleted(ev event.Envelope) {
	var wire leadDeletedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing lead id")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.deleteLocked(LeadKey(wire.ID), ev.Timestamp)
}

// applyAgentStatus updates only the named agent fields.
func (s *Synchronizer) applyAgentStatus(ev event.Envelope) {
	var wire agentStatusWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing agent id")
		return
	}
	key := AgentKey(wire.ID)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	existing := s.state.entries[key]
	if stale(existing, ev.Timestamp) {
		return
	}

	var agent model.Agent
	placeholder := existing == nil
	if existing != nil {
		agent = existing.Value.(model.Agent)
		placeholder = existing.Placeholder
	} else {
		agent = model.Agent{ID: wire.ID}
	}

	if wire.Name != "" {
		agent.Name = wire.Name
	}
	if wire.Status != "" {
		agent.Status = wire.Status
	}
	if wire.TaskID != nil {
		agent.TaskID = *wire.TaskID
	}
	agent.UpdatedAt = ev.Timestamp

	s.state.setLocked(Entry{
		Key:         key,
		Value:       agent,
		UpdatedAt:   ev.Timestamp,
		Origin:      OriginServer,
		Placeholder: placeholder,
	})
}

// applyJobProgress updates a job's progress and state fields.
func (s *Synchronizer) applyJobProgress(ev event.Envelope) {
	var wire jobProgressWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing job id")
		return
	}

	s.updateJob(ev, wire.ID, func(job *model.Job) {
		if wire.State != "" {
			job.State = wire.State
		} else if job.State == "" || job.State == model.JobQueued {
			job.State = model.JobRunning
		}
		if wire.Progress != nil {
			job.Progress = *wire.Progress
		}
	})
}

// applyJobCompleted marks a job finished.
func (s *Synchronizer) applyJobCompleted(ev event.Envelope) {
	var wire jobCompletedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing job id")
		return
	}

	s.updateJob(ev, wire.ID, func(job *model.Job) {
		job.State = model.JobCompleted
		job.Progress = 100
		if wire.LeadCount != nil {
			job.LeadCount = *wire.LeadCount
		}
	})
}

// applyJobFailed marks a job failed.
func (s *Synchronizer) applyJobFailed(ev event.Envelope) {
	var wire jobFailedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.ID == "" {
		s.dropPayload(ev, "missing job id")
		return
	}

	s.updateJob(ev, wire.ID, func(job *model.Job) {
		job.State = model.JobFailed
		job.Error = wire.Error
	})
}

// updateJob applies a field update to a job, materializing a
// placeholder when the key is unknown.
func (s *Synchronizer) updateJob(ev event.Envelope, id string, apply func(*model.Job)) {
	key := JobKey(id)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	existing := s.state.entries[key]
	if stale(existing, ev.Timestamp) {
		return
	}

	var job model.Job
	placeholder := existing == nil
	if existing != nil {
		job = existing.Value.(model.Job)
		placeholder = existing.Placeholder
	} else {
		job = model.Job{ID: id}
	}

	apply(&job)
	job.UpdatedAt = ev.Timestamp

	s.state.setLocked(Entry{
		Key:         key,
		Value:       job,
		UpdatedAt:   ev.Timestamp,
		Origin:      OriginServer,
		Placeholder: placeholder,
	})
}

// applyQuotaUpdated installs the quota document. Quota events are full
// replaces; there is nothing to merge.
func (s *Synchronizer) applyQuotaUpdated(ev event.Envelope) {
	var wire quotaUpdatedWire
	if err := json.Unmarshal(ev.Payload, &wire); err != nil {
		s.dropPayload(ev, err.Error())
		return
	}
	if wire.Quota.ID == "" {
		s.dropPayload(ev, "missing quota id")
		return
	}
	key := QuotaKey(wire.Quota.ID)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if stale(s.state.entries[key], ev.Timestamp) {
		return
	}

	quota := wire.Quota.ToModel()
	quota.UpdatedAt = ev.Timestamp

	s.state.setLocked(Entry{
		Key:       key,
		Value:     quota,
		UpdatedAt: ev.Timestamp,
		Origin:    OriginServer,
	})
}
