package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leadstack/leadsync/internal/api"
	"github.com/leadstack/leadsync/internal/event"
	"github.com/leadstack/leadsync/internal/model"
	"github.com/leadstack/leadsync/internal/registry"
)

// Config holds Synchronizer configuration.
type Config struct {
	// RefreshInterval paces the background loop that re-fetches
	// placeholder entries and prunes tombstones.
	RefreshInterval time.Duration

	// FetchTimeout bounds each individual REST fetch.
	FetchTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: time.Minute,
		FetchTimeout:    15 * time.Second,
	}
}

// Synchronizer is the sole writer of the entity cache.
type Synchronizer struct {
	cfg    Config
	rest   *api.Client
	logger *slog.Logger

	state *store

	// Optimistic creations awaiting confirmation: client ref → temp key.
	pendingMu      sync.Mutex
	pendingCreates map[string]string

	unsubs []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSynchronizer creates a synchronizer backed by the REST client.
func NewSynchronizer(cfg Config, rest *api.Client, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		cfg:            cfg,
		rest:           rest,
		logger:         logger.With("component", "cache"),
		state:          newStore(),
		pendingCreates: make(map[string]string),
	}
}

// Bind subscribes the synchronizer to every entity event. It is itself
// just another registry consumer; nothing else may write the cache.
func (s *Synchronizer) Bind(reg *registry.Registry) {
	for _, name := range event.EntityNames {
		s.unsubs = append(s.unsubs, reg.Subscribe(name, s.handleEvent))
	}
}

// Unbind removes the registry subscriptions.
func (s *Synchronizer) Unbind() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Start installs the initial REST snapshot and begins the background
// refresh loop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.initialSync(s.ctx); err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop(s.ctx)
	}()

	return nil
}

// Stop shuts the refresh loop down.
func (s *Synchronizer) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("cache synchronizer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleEvent applies one inbound event to the cache. Per-event
// failures are isolated: a bad payload is logged and dropped, the
// stream continues.
func (s *Synchronizer) handleEvent(ev event.Envelope) {
	switch ev.Type {
	case event.LeadCreated:
		s.applyLeadCreated(ev)
	case event.LeadUpdated:
		s.applyLeadUpdated(ev)
	case event.LeadEnriched, event.EnrichmentUpdate:
		s.applyLeadEnriched(ev)
	case event.LeadDeleted:
		s.applyLeadDeleted(ev)
	case event.AgentStatusUpdate:
		s.applyAgentStatus(ev)
	case event.JobProgress:
		s.applyJobProgress(ev)
	case event.JobCompleted:
		s.applyJobCompleted(ev)
	case event.JobFailed:
		s.applyJobFailed(ev)
	case event.QuotaUpdated:
		s.applyQuotaUpdated(ev)
	}
}

// stale reports whether an existing server-origin entry already
// reflects a write at or after ts. Optimistic entries are never
// considered newer than server events: the event is the confirmation.
func stale(e *Entry, ts time.Time) bool {
	return e != nil && e.Origin == OriginServer && e.UpdatedAt.After(ts)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetLead returns a copy of the cached lead.
func (s *Synchronizer) GetLead(id string) (model.Lead, bool) {
	e, ok := s.state.get(LeadKey(id))
	if !ok {
		return model.Lead{}, false
	}
	return cloneLead(e.Value.(model.Lead)), true
}

// GetLeadEntry returns the full cache entry for a lead, including its
// origin and placeholder flag.
func (s *Synchronizer) GetLeadEntry(id string) (Entry, bool) {
	return s.state.get(LeadKey(id))
}

// Leads returns all cached leads, ordered by creation time.
func (s *Synchronizer) Leads() []model.Lead {
	s.state.mu.RLock()
	leads := make([]model.Lead, 0)
	for key, e := range s.state.entries {
		if key.Type == model.EntityLead {
			leads = append(leads, cloneLead(e.Value.(model.Lead)))
		}
	}
	s.state.mu.RUnlock()

	sort.Slice(leads, func(i, j int) bool {
		if leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
	return leads
}

// LeadsByStage groups leads into board columns. Computed on read; a
// stage-change event only updates the lead's field.
func (s *Synchronizer) LeadsByStage() map[string][]model.Lead {
	out := make(map[string][]model.Lead)
	for _, l := range s.Leads() {
		out[l.Stage] = append(out[l.Stage], l)
	}
	return out
}

// GetAgent returns a copy of the cached agent.
func (s *Synchronizer) GetAgent(id string) (model.Agent, bool) {
	e, ok := s.state.get(AgentKey(id))
	if !ok {
		return model.Agent{}, false
	}
	return e.Value.(model.Agent), true
}

// Agents returns all cached agents, ordered by ID.
func (s *Synchronizer) Agents() []model.Agent {
	s.state.mu.RLock()
	agents := make([]model.Agent, 0)
	for key, e := range s.state.entries {
		if key.Type == model.EntityAgent {
			agents = append(agents, e.Value.(model.Agent))
		}
	}
	s.state.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// GetJob returns a copy of the cached job.
func (s *Synchronizer) GetJob(id string) (model.Job, bool) {
	e, ok := s.state.get(JobKey(id))
	if !ok {
		return model.Job{}, false
	}
	return e.Value.(model.Job), true
}

// Jobs returns all cached jobs, ordered by ID.
func (s *Synchronizer) Jobs() []model.Job {
	s.state.mu.RLock()
	jobs := make([]model.Job, 0)
	for key, e := range s.state.entries {
		if key.Type == model.EntityJob {
			jobs = append(jobs, e.Value.(model.Job))
		}
	}
	s.state.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// JobsByState groups jobs by state. Computed on read.
func (s *Synchronizer) JobsByState() map[string][]model.Job {
	out := make(map[string][]model.Job)
	for _, j := range s.Jobs() {
		out[j.State] = append(out[j.State], j)
	}
	return out
}

// GetQuota returns a copy of the cached quota.
func (s *Synchronizer) GetQuota(id string) (model.Quota, bool) {
	e, ok := s.state.get(QuotaKey(id))
	if !ok {
		return model.Quota{}, false
	}
	return e.Value.(model.Quota), true
}

// Quotas returns all cached quotas, ordered by ID.
func (s *Synchronizer) Quotas() []model.Quota {
	s.state.mu.RLock()
	quotas := make([]model.Quota, 0)
	for key, e := range s.state.entries {
		if key.Type == model.EntityQuota {
			quotas = append(quotas, e.Value.(model.Quota))
		}
	}
	s.state.mu.RUnlock()

	sort.Slice(quotas, func(i, j int) bool { return quotas[i].ID < quotas[j].ID })
	return quotas
}

// Counts returns entry counts per entity type.
func (s *Synchronizer) Counts() map[model.EntityType]int {
	return s.state.counts()
}
