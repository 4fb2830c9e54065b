// Package a2a implements the agent-to-agent protocol predator uses to
// delegate sub-tasks to remote peers: descriptor discovery, a JSON invoke
// exchange, a retrying client and a gin-based server wrapping a runner.
//
// A peer may answer an invocation with "input-required" and a pending
// confirmation. The caller relays it to its own operator and later forwards
// the decision to the same remote task.
package a2a

import (
	"errors"
	"fmt"

	"github.com/hupe1980/predator/core"
)

// DescriptorPath is where a server publishes its AgentDescriptor.
const DescriptorPath = "/.well-known/agent-card.json"

// InvokePath is the default route accepting InvokeRequests.
const InvokePath = "/invoke"

// ProtocolVersion is advertised in every descriptor served.
const ProtocolVersion = "0.3.0"

// InvokeRequest is the body POSTed to a peer. Exactly one of Message and
// Decision is set; TaskID continues an existing remote task.
type InvokeRequest struct {
	CorrelationID string                     `json:"correlationId"`
	TaskID        string                     `json:"taskId,omitempty"`
	Message       string                     `json:"message,omitempty"`
	Decision      *core.ConfirmationDecision `json:"decision,omitempty"`
}

// InvokeResponse is the peer's answer.
type InvokeResponse struct {
	CorrelationID string                    `json:"correlationId"`
	TaskID        string                    `json:"taskId"`
	State         core.RemoteState          `json:"state"`
	Result        string                    `json:"result,omitempty"`
	Confirmation  *core.PendingConfirmation `json:"confirmation,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

// Validate checks the structural rules of a request.
func (r InvokeRequest) Validate() error {
	switch {
	case r.CorrelationID == "":
		return errors.New("correlationId is required")
	case r.Message == "" && r.Decision == nil:
		return errors.New("one of message or decision is required")
	case r.Message != "" && r.Decision != nil:
		return errors.New("message and decision are mutually exclusive")
	case r.Decision != nil && r.TaskID == "":
		return errors.New("a decision requires taskId")
	case r.Decision != nil && r.Decision.InvocationID == "":
		return errors.New("decision.invocation_id is required")
	}
	return nil
}

// Validate checks the structural rules of a response.
func (r InvokeResponse) Validate() error {
	switch r.State {
	case core.RemoteCompleted, core.RemoteFailed:
		return nil
	case core.RemoteInputRequired:
		if r.Confirmation == nil || r.Confirmation.InvocationID == "" {
			return errors.New("input-required response without confirmation")
		}
		if r.TaskID == "" {
			return errors.New("input-required response without taskId")
		}
		return nil
	default:
		return fmt.Errorf("unknown state %q", r.State)
	}
}

// validateDescriptor rejects descriptors a client cannot call.
func validateDescriptor(d core.AgentDescriptor) error {
	if d.Name == "" {
		return errors.New("descriptor has no name")
	}
	if d.URL == "" {
		return errors.New("descriptor has no url")
	}
	return nil
}
