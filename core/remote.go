package core

import "context"

// Skill is one capability advertised by a remote agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Capabilities lists optional protocol features a remote agent supports.
type Capabilities struct {
	// Confirmations reports that the peer may answer with input-required.
	Confirmations bool `json:"confirmations"`
}

// AgentDescriptor is the discovery document published by a remote agent
// server. It is immutable for the lifetime of the server process.
type AgentDescriptor struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	URL             string       `json:"url"`
	Version         string       `json:"version,omitempty"`
	ProtocolVersion string       `json:"protocolVersion,omitempty"`
	Skills          []Skill      `json:"skills,omitempty"`
	Capabilities    Capabilities `json:"capabilities"`
}

// RemoteState is the outcome state reported by a remote agent.
type RemoteState string

const (
	RemoteCompleted     RemoteState = "completed"
	RemoteInputRequired RemoteState = "input-required"
	RemoteFailed        RemoteState = "failed"
)

// RemoteRequest is a sub-task forwarded to a remote agent. Exactly one of Text
// and Decision is set; TaskID is set when continuing a remote task.
type RemoteRequest struct {
	CorrelationID string
	TaskID        string
	Text          string
	Decision      *ConfirmationDecision
}

// RemoteResponse is what a remote agent returned for a request.
type RemoteResponse struct {
	CorrelationID string
	TaskID        string
	State         RemoteState
	Text          string
	Confirmation  *PendingConfirmation
}

// RemoteAgent is a peer agent reachable over the network.
type RemoteAgent interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, req RemoteRequest) (RemoteResponse, error)
}
