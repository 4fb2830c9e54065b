package a2a

import (
	"context"
	"strings"

	"github.com/hupe1980/predator/core"
)

// RemoteAgent exposes a peer reachable under a base URL as a
// core.RemoteAgent. The descriptor is discovered lazily on first use.
type RemoteAgent struct {
	name        string
	description string
	baseURL     string
	client      *Client
}

var _ core.RemoteAgent = (*RemoteAgent)(nil)

// NewRemoteAgent creates a RemoteAgent. name is how the oracle addresses
// the peer; description is shown to the oracle until discovery provides one.
func NewRemoteAgent(client *Client, name, baseURL, description string) *RemoteAgent {
	return &RemoteAgent{name: name, description: description, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name implements core.RemoteAgent.
func (a *RemoteAgent) Name() string { return a.name }

// Description implements core.RemoteAgent.
func (a *RemoteAgent) Description() string {
	if d, ok := a.client.cache.Peek(a.baseURL); ok && d.Description != "" {
		return d.Description
	}
	return a.description
}

// Invoke implements core.RemoteAgent.
func (a *RemoteAgent) Invoke(ctx context.Context, req core.RemoteRequest) (core.RemoteResponse, error) {
	desc, err := a.client.Discover(ctx, a.baseURL)
	if err != nil {
		return core.RemoteResponse{}, err
	}

	resp, err := a.client.Invoke(ctx, desc, InvokeRequest{
		CorrelationID: req.CorrelationID,
		TaskID:        req.TaskID,
		Message:       req.Text,
		Decision:      req.Decision,
	})
	if err != nil {
		return core.RemoteResponse{}, err
	}

	out := core.RemoteResponse{
		CorrelationID: resp.CorrelationID,
		TaskID:        resp.TaskID,
		State:         resp.State,
		Text:          resp.Result,
		Confirmation:  resp.Confirmation,
	}
	if resp.State == core.RemoteFailed && resp.Error != "" {
		out.Text = resp.Error
	}

	return out, nil
}
