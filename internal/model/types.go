package model

import "time"

// EntityType identifies a cache keyspace.
type EntityType string

const (
	EntityLead  EntityType = "lead"
	EntityAgent EntityType = "agent"
	EntityJob   EntityType = "job"
	EntityQuota EntityType = "quota"
)

// Lead stages, in pipeline order.
const (
	StageNew         = "new"
	StageContacted   = "contacted"
	StageQualified   = "qualified"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

// Lead is a prospect record on the pipeline board.
type Lead struct {
	ID          string // Primary key (server-assigned; "tmp-<uuid>" before confirmation)
	ClientRef   string // Client-generated ref echoed by the backend on create
	CompanyName string
	ContactName string
	Email       string
	Phone       string
	Website     string
	Stage       string // One of the Stage* constants
	Score       int    // 0-100 fit score from the enrichment pipeline
	OwnerID     string // Agent currently owning this lead
	Source      string // Where the lead came from (import, scrape, manual)

	// Enrichment holds pipeline-produced attributes (industry, headcount,
	// funding, ...). Keys are owned by the upstream producer; the cache
	// merges, never interprets.
	Enrichment map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Agent statuses.
const (
	AgentIdle    = "idle"
	AgentWorking = "working"
	AgentPaused  = "paused"
	AgentOffline = "offline"
)

// Agent is an AI worker processing leads.
type Agent struct {
	ID        string
	Name      string
	Status    string // One of the Agent* constants
	TaskID    string // Job currently being worked, if any
	UpdatedAt time.Time
}

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is a long-running enrichment or import task.
type Job struct {
	ID        string
	Kind      string // "enrich", "import", "score"
	State     string // One of the Job* constants
	Progress  int    // 0-100
	LeadCount int    // Leads touched by this job
	Error     string // Populated on failure
	UpdatedAt time.Time
}

// Quota is a consumable account allowance. Quota events are full
// replaces: the backend always sends the complete document.
type Quota struct {
	ID        string // Quota name ("enrichment-credits", "seats", ...)
	Used      int
	Limit     int
	ResetsAt  time.Time
	UpdatedAt time.Time
}

// Remaining returns the unconsumed allowance, never negative.
func (q Quota) Remaining() int {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}
