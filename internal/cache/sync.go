package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leadstack/leadsync/internal/api"
	"github.com/leadstack/leadsync/internal/model"
)

// tombstoneMaxAge bounds how long deletion markers are kept. Replayed
// events older than this are assumed to have drained from the stream.
const tombstoneMaxAge = 10 * time.Minute

// initialSync installs the REST snapshot of every entity type. Events
// arriving concurrently are not lost: entries already written by a
// newer event survive via the usual staleness check.
func (s *Synchronizer) initialSync(ctx context.Context) error {
	start := time.Now()

	leads, err := s.rest.GetAllLeads(ctx)
	if err != nil {
		return fmt.Errorf("initial sync leads: %w", err)
	}
	agents, err := s.rest.GetAgents(ctx)
	if err != nil {
		return fmt.Errorf("initial sync agents: %w", err)
	}
	jobs, err := s.rest.GetAllJobs(ctx)
	if err != nil {
		return fmt.Errorf("initial sync jobs: %w", err)
	}
	quotas, err := s.rest.GetQuotas(ctx)
	if err != nil {
		return fmt.Errorf("initial sync quotas: %w", err)
	}

	s.state.mu.Lock()
	for _, l := range leads {
		s.installLocked(LeadKey(l.ID), cloneLead(l.ToModel()), l.UpdatedAt)
	}
	for _, a := range agents {
		s.installLocked(AgentKey(a.ID), a.ToModel(), a.UpdatedAt)
	}
	for _, j := range jobs {
		s.installLocked(JobKey(j.ID), j.ToModel(), j.UpdatedAt)
	}
	for _, q := range quotas {
		s.installLocked(QuotaKey(q.ID), q.ToModel(), q.UpdatedAt)
	}
	s.state.mu.Unlock()

	s.logger.Info("initial sync complete",
		"leads", len(leads),
		"agents", len(agents),
		"jobs", len(jobs),
		"quotas", len(quotas),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// installLocked writes a fetched entity unless a newer server write or
// a deletion already covers it. Caller holds the write lock.
func (s *Synchronizer) installLocked(key Key, value any, updatedAt time.Time) {
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if stale(s.state.entries[key], updatedAt) || s.state.deletedAfterLocked(key, updatedAt) {
		return
	}
	s.state.setLocked(Entry{
		Key:       key,
		Value:     value,
		UpdatedAt: updatedAt,
		Origin:    OriginServer,
	})
}

// refreshLoop periodically re-fetches placeholder entries and prunes
// old tombstones.
func (s *Synchronizer) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, key := range s.state.placeholders() {
				if err := s.Refresh(ctx, key); err != nil {
					s.logger.Warn("placeholder refresh failed",
						"entity", key.Type,
						"id", key.ID,
						"error", err,
					)
				}
			}
			s.state.pruneTombstones(tombstoneMaxAge)
		}
	}
}

// Refresh re-fetches one entity from the REST API and installs the
// result. Concurrent refreshes of the same key resolve last-request-
// wins: each call bumps the key's fetch generation, and a response
// whose generation has been superseded is discarded on arrival.
func (s *Synchronizer) Refresh(ctx context.Context, key Key) error {
	gen := s.state.bumpFetch(key)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var (
		value     any
		updatedAt time.Time
	)

	switch key.Type {
	case model.EntityLead:
		lead, err := s.rest.GetLead(ctx, key.ID)
		if err != nil {
			return s.refreshFailed(key, err)
		}
		value = cloneLead(lead.ToModel())
		updatedAt = lead.UpdatedAt
	case model.EntityAgent:
		agent, err := s.rest.GetAgent(ctx, key.ID)
		if err != nil {
			return s.refreshFailed(key, err)
		}
		value = agent.ToModel()
		updatedAt = agent.UpdatedAt
	case model.EntityJob:
		job, err := s.rest.GetJob(ctx, key.ID)
		if err != nil {
			return s.refreshFailed(key, err)
		}
		value = job.ToModel()
		updatedAt = job.UpdatedAt
	case model.EntityQuota:
		quota, err := s.rest.GetQuota(ctx, key.ID)
		if err != nil {
			return s.refreshFailed(key, err)
		}
		value = quota.ToModel()
		updatedAt = quota.UpdatedAt
	default:
		return fmt.Errorf("refresh: unknown entity type %q", key.Type)
	}

	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if !s.state.fetchCurrentLocked(key, gen) {
		// A later request was issued while this one was in flight.
		return nil
	}
	if stale(s.state.entries[key], updatedAt) || s.state.deletedAfterLocked(key, updatedAt) {
		return nil
	}

	s.state.setLocked(Entry{
		Key:       key,
		Value:     value,
		UpdatedAt: updatedAt,
		Origin:    OriginServer,
	})
	return nil
}

// refreshFailed handles a failed re-fetch. A 404 means the server no
// longer has the entity: the cached entry (a placeholder materialized
// from an out-of-order event, typically) is removed and tombstoned so
// a replayed event cannot bring it back. Anything else is a transient
// fetch error and the entry is kept for the next cycle.
func (s *Synchronizer) refreshFailed(key Key, err error) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return err
	}

	s.state.mu.Lock()
	s.state.deleteLocked(key, time.Now())
	s.state.mu.Unlock()

	s.logger.Info("dropping entity gone from server",
		"entity", key.Type,
		"id", key.ID,
	)
	return nil
}
