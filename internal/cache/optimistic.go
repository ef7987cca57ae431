package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadstack/leadsync/internal/api"
	"github.com/leadstack/leadsync/internal/model"
)

// Optimistic mutation protocol: apply the local change immediately,
// issue the REST request, then confirm with the server's version or
// roll back to the prior state when the request fails. Each create
// carries a client ref so the eventual lead-created event can be
// matched to the temporary entry it confirms, whichever of the REST
// response and the event arrives first.

// CreateLead inserts a lead optimistically under a temporary key and
// creates it on the server. On success the temporary entry is replaced
// by the server's version under the real key and the server lead is
// returned; on failure the entry is removed and the lead is zero.
func (s *Synchronizer) CreateLead(ctx context.Context, req api.CreateLeadRequest) (model.Lead, error) {
	if req.ClientRef == "" {
		req.ClientRef = uuid.NewString()
	}
	tempID := "tmp-" + uuid.NewString()
	now := time.Now()

	optimistic := model.Lead{
		ID:          tempID,
		ClientRef:   req.ClientRef,
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Website:     req.Website,
		Stage:       req.Stage,
		Source:      req.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if optimistic.Stage == "" {
		optimistic.Stage = model.StageNew
	}

	s.pendingMu.Lock()
	s.pendingCreates[req.ClientRef] = tempID
	s.pendingMu.Unlock()

	s.state.mu.Lock()
	s.state.setLocked(Entry{
		Key:       LeadKey(tempID),
		Value:     optimistic,
		UpdatedAt: now,
		Origin:    OriginOptimistic,
	})
	s.state.mu.Unlock()

	created, err := s.rest.CreateLead(ctx, req)
	if err != nil {
		// The event for this create will never come; drop the
		// temporary entry so the failed edit doesn't linger.
		s.resolvePendingCreate(req.ClientRef)
		s.logger.Warn("optimistic create rolled back", "temp_id", tempID, "error", err)
		return model.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	lead := created.ToModel()
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = time.Now()
	}

	// The lead-created event may have beaten the response here, in
	// which case the real key is already populated and the pending
	// entry already resolved. LWW on the entry keeps this safe.
	s.resolvePendingCreate(req.ClientRef)

	s.state.mu.Lock()
	if !stale(s.state.entries[LeadKey(lead.ID)], lead.UpdatedAt) &&
		!s.state.deletedAfterLocked(LeadKey(lead.ID), lead.UpdatedAt) {
		s.state.setLocked(Entry{
			Key:       LeadKey(lead.ID),
			Value:     cloneLead(lead),
			UpdatedAt: lead.UpdatedAt,
			Origin:    OriginServer,
		})
	}
	s.state.mu.Unlock()

	s.logger.Debug("optimistic create confirmed", "temp_id", tempID, "id", lead.ID)
	return lead, nil
}

// resolvePendingCreate removes the temporary entry recorded for a
// client ref. Idempotent: the REST response path and the event path
// both call it, whichever runs second finds nothing.
func (s *Synchronizer) resolvePendingCreate(clientRef string) {
	s.pendingMu.Lock()
	tempID, ok := s.pendingCreates[clientRef]
	if ok {
		delete(s.pendingCreates, clientRef)
	}
	s.pendingMu.Unlock()

	if !ok {
		return
	}

	s.state.mu.Lock()
	delete(s.state.entries, LeadKey(tempID))
	s.state.mu.Unlock()
}

// UpdateLead patches a lead optimistically and persists the change. On
// failure the prior value is restored, unless a newer server write has
// already superseded the rollback.
func (s *Synchronizer) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) (model.Lead, error) {
	if patch.IsZero() {
		lead, ok := s.GetLead(id)
		if !ok {
			return model.Lead{}, fmt.Errorf("update lead %s: not cached", id)
		}
		return lead, nil
	}

	key := LeadKey(id)
	now := time.Now()

	s.state.mu.Lock()
	prior, had := s.state.entries[key]
	var priorCopy Entry
	if had {
		priorCopy = *prior
		priorCopy.Value = cloneLead(prior.Value.(model.Lead))

		lead := cloneLead(prior.Value.(model.Lead))
		patch.Apply(&lead)
		lead.UpdatedAt = now
		s.state.setLocked(Entry{
			Key:         key,
			Value:       lead,
			UpdatedAt:   now,
			Origin:      OriginOptimistic,
			Placeholder: prior.Placeholder,
		})
	}
	s.state.mu.Unlock()

	updated, err := s.rest.UpdateLead(ctx, id, patch)
	if err != nil {
		if had {
			s.rollbackLead(key, priorCopy, now)
		}
		return model.Lead{}, fmt.Errorf("update lead %s: %w", id, err)
	}

	lead := updated.ToModel()
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = time.Now()
	}

	s.state.mu.Lock()
	if !stale(s.state.entries[key], lead.UpdatedAt) && !s.state.deletedAfterLocked(key, lead.UpdatedAt) {
		s.state.setLocked(Entry{
			Key:       key,
			Value:     cloneLead(lead),
			UpdatedAt: lead.UpdatedAt,
			Origin:    OriginServer,
		})
	}
	s.state.mu.Unlock()

	return lead, nil
}

// DeleteLead removes a lead optimistically and deletes it on the
// server. On failure the entry is restored.
func (s *Synchronizer) DeleteLead(ctx context.Context, id string) error {
	key := LeadKey(id)

	s.state.mu.Lock()
	prior, had := s.state.entries[key]
	var priorCopy Entry
	if had {
		priorCopy = *prior
		priorCopy.Value = cloneLead(prior.Value.(model.Lead))
		delete(s.state.entries, key)
	}
	s.state.mu.Unlock()

	if err := s.rest.DeleteLead(ctx, id); err != nil {
		if had {
			s.rollbackLead(key, priorCopy, time.Now())
		}
		return err
	}

	// Record the deletion so a replayed create for the same key is
	// ignored. The server's lead-deleted event will land on an already
	// empty slot.
	s.state.mu.Lock()
	s.state.deleteLocked(key, time.Now())
	s.state.mu.Unlock()

	return nil
}

// rollbackLead restores a prior entry after a failed mutation, unless
// the server has written the key since the optimistic edit was made.
func (s *Synchronizer) rollbackLead(key Key, prior Entry, editedAt time.Time) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	current := s.state.entries[key]
	if current != nil && current.Origin == OriginServer && current.UpdatedAt.After(editedAt) {
		// Server truth arrived while the request was in flight; it
		// wins over the rollback.
		return
	}
	if s.state.deletedAfterLocked(key, editedAt) {
		return
	}

	s.state.setLocked(prior)
	s.logger.Debug("optimistic edit rolled back", "entity", key.Type, "id", key.ID)
}
