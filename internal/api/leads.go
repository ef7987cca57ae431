package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/leadstack/leadsync/internal/model"
)

// GetLeads fetches a page of leads.
func (c *Client) GetLeads(ctx context.Context, opts GetLeadsOptions) (*LeadsResponse, error) {
	query := url.Values{}

	if opts.Stage != "" {
		query.Set("stage", opts.Stage)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp LeadsResponse
	if err := c.get(ctx, "/leads", query, &resp); err != nil {
		return nil, fmt.Errorf("get leads: %w", err)
	}

	return &resp, nil
}

// GetAllLeads fetches all leads by paginating through results. Uses
// DefaultPaginationTimeout if the context has no deadline.
func (c *Client) GetAllLeads(ctx context.Context) ([]APILead, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var allLeads []APILead
	opts := GetLeadsOptions{Limit: 500}

	for {
		resp, err := c.GetLeads(ctx, opts)
		if err != nil {
			return nil, err
		}

		allLeads = append(allLeads, resp.Leads...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return allLeads, nil
}

// GetLead fetches a single lead by ID.
func (c *Client) GetLead(ctx context.Context, id string) (*APILead, error) {
	var resp SingleLeadResponse
	if err := c.get(ctx, "/leads/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get lead %s: %w", id, err)
	}
	return &resp.Lead, nil
}

// CreateLead creates a lead and returns the server's version of it.
func (c *Client) CreateLead(ctx context.Context, req CreateLeadRequest) (*APILead, error) {
	var resp SingleLeadResponse
	if err := c.post(ctx, "/leads", req, &resp); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return &resp.Lead, nil
}

// UpdateLead applies a partial update and returns the updated lead.
func (c *Client) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) (*APILead, error) {
	var resp SingleLeadResponse
	if err := c.patch(ctx, "/leads/"+id, patch, &resp); err != nil {
		return nil, fmt.Errorf("update lead %s: %w", id, err)
	}
	return &resp.Lead, nil
}

// DeleteLead removes a lead.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/leads/"+id); err != nil {
		return fmt.Errorf("delete lead %s: %w", id, err)
	}
	return nil
}
