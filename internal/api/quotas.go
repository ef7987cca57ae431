package api

import (
	"context"
	"fmt"
)

// GetQuotas fetches all account quotas.
func (c *Client) GetQuotas(ctx context.Context) ([]APIQuota, error) {
	var resp QuotasResponse
	if err := c.get(ctx, "/quotas", nil, &resp); err != nil {
		return nil, fmt.Errorf("get quotas: %w", err)
	}
	return resp.Quotas, nil
}

// GetQuota fetches a single quota by name.
func (c *Client) GetQuota(ctx context.Context, id string) (*APIQuota, error) {
	var resp SingleQuotaResponse
	if err := c.get(ctx, "/quotas/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get quota %s: %w", id, err)
	}
	return &resp.Quota, nil
}
