package api

import (
	"time"

	"github.com/leadstack/leadsync/internal/model"
)

// DefaultPaginationTimeout bounds GetAll* calls when the caller's
// context has no deadline.
const DefaultPaginationTimeout = 5 * time.Minute

// APILead is the wire representation of a lead. The cache also decodes
// lead-created event payloads into this type.
type APILead struct {
	ID          string         `json:"id"`
	ClientRef   string         `json:"client_ref,omitempty"`
	CompanyName string         `json:"company_name"`
	ContactName string         `json:"contact_name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Website     string         `json:"website,omitempty"`
	Stage       string         `json:"stage"`
	Score       int            `json:"score"`
	OwnerID     string         `json:"owner_id,omitempty"`
	Source      string         `json:"source,omitempty"`
	Enrichment  map[string]any `json:"enrichment,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToModel converts to the internal model type.
func (l APILead) ToModel() model.Lead {
	return model.Lead{
		ID:          l.ID,
		ClientRef:   l.ClientRef,
		CompanyName: l.CompanyName,
		ContactName: l.ContactName,
		Email:       l.Email,
		Phone:       l.Phone,
		Website:     l.Website,
		Stage:       l.Stage,
		Score:       l.Score,
		OwnerID:     l.OwnerID,
		Source:      l.Source,
		Enrichment:  l.Enrichment,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// APIAgent is the wire representation of an agent.
type APIAgent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	TaskID    string    `json:"task_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a APIAgent) ToModel() model.Agent {
	return model.Agent{
		ID:        a.ID,
		Name:      a.Name,
		Status:    a.Status,
		TaskID:    a.TaskID,
		UpdatedAt: a.UpdatedAt,
	}
}

// APIJob is the wire representation of a job.
type APIJob struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Progress  int       `json:"progress"`
	LeadCount int       `json:"lead_count"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j APIJob) ToModel() model.Job {
	return model.Job{
		ID:        j.ID,
		Kind:      j.Kind,
		State:     j.State,
		Progress:  j.Progress,
		LeadCount: j.LeadCount,
		Error:     j.Error,
		UpdatedAt: j.UpdatedAt,
	}
}

// APIQuota is the wire representation of a quota.
type APIQuota struct {
	ID        string    `json:"id"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resets_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q APIQuota) ToModel() model.Quota {
	return model.Quota{
		ID:        q.ID,
		Used:      q.Used,
		Limit:     q.Limit,
		ResetsAt:  q.ResetsAt,
		UpdatedAt: q.UpdatedAt,
	}
}

// CreateLeadRequest is the body for POST /leads. ClientRef is echoed
// back in the created lead and in the lead-created event so the cache
// can reconcile the optimistic placeholder.
type CreateLeadRequest struct {
	ClientRef   string `json:"client_ref"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Source      string `json:"source,omitempty"`
}

// List responses use cursor pagination.
type LeadsResponse struct {
	Leads  []APILead `json:"leads"`
	Cursor string    `json:"cursor"`
}

type SingleLeadResponse struct {
	Lead APILead `json:"lead"`
}

type AgentsResponse struct {
	Agents []APIAgent `json:"agents"`
}

type SingleAgentResponse struct {
	Agent APIAgent `json:"agent"`
}

type JobsResponse struct {
	Jobs   []APIJob `json:"jobs"`
	Cursor string   `json:"cursor"`
}

type SingleJobResponse struct {
	Job APIJob `json:"job"`
}

type QuotasResponse struct {
	Quotas []APIQuota `json:"quotas"`
}

type SingleQuotaResponse struct {
	Quota APIQuota `json:"quota"`
}

// GetLeadsOptions filters a leads page fetch.
type GetLeadsOptions struct {
	Stage  string
	Limit  int
	Cursor string
}
