package api

import (
	"context"
	"fmt"
)

// GetAgents fetches all agents. The agent roster is small; no
// pagination.
func (c *Client) GetAgents(ctx context.Context) ([]APIAgent, error) {
	var resp AgentsResponse
	if err := c.get(ctx, "/agents", nil, &resp); err != nil {
		return nil, fmt.Errorf("get agents: %w", err)
	}
	return resp.Agents, nil
}

// GetAgent fetches a single agent by ID.
func (c *Client) GetAgent(ctx context.Context, id string) (*APIAgent, error) {
	var resp SingleAgentResponse
	if err := c.get(ctx, "/agents/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return &resp.Agent, nil
}
