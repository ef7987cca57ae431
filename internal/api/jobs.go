package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetJobs fetches a page of jobs.
func (c *Client) GetJobs(ctx context.Context, limit int, cursor string) (*JobsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp JobsResponse
	if err := c.get(ctx, "/jobs", query, &resp); err != nil {
		return nil, fmt.Errorf("get jobs: %w", err)
	}
	return &resp, nil
}

// GetAllJobs fetches all jobs by paginating through results.
func (c *Client) GetAllJobs(ctx context.Context) ([]APIJob, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var allJobs []APIJob
	cursor := ""

	for {
		resp, err := c.GetJobs(ctx, 500, cursor)
		if err != nil {
			return nil, err
		}

		allJobs = append(allJobs, resp.Jobs...)

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return allJobs, nil
}

// GetJob fetches a single job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*APIJob, error) {
	var resp SingleJobResponse
	if err := c.get(ctx, "/jobs/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &resp.Job, nil
}
