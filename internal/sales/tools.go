// Package sales holds the sales domain used by the predator binaries: the
// lead scoring, outreach and pricing tools, and deterministic oracles that
// follow the Predator playbook without a language model.
package sales

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/tool"
)

// Tool names.
const (
	ScoreLeadName     = "score_lead"
	DraftOutreachName = "draft_outreach"
	PricingName       = "get_competitor_pricing"
	MarketOracleName  = "market_oracle"
)

// Outreach statuses returned by draft_outreach.
const (
	StatusSent     = "SENT"
	StatusRejected = "REJECTED"
)

// Priorities returned by score_lead.
const (
	PriorityCritical = "CRITICAL"
	PriorityNormal   = "NORMAL"
)

// LeadScore is the result of score_lead.
type LeadScore struct {
	Score          int    `json:"score"`
	Priority       string `json:"priority"`
	Recommendation string `json:"recommendation"`
}

// ScoreLead computes a win probability from budget and urgency. A base of 50
// gains 30 for budgets of at least 50000 and 20 for urgent leads.
func ScoreLead(budget float64, urgency string) LeadScore {
	score := 50
	if budget >= 50000 {
		score += 30
	}
	switch strings.ToLower(strings.TrimSpace(urgency)) {
	case "high", "asap", "now":
		score += 20
	}

	if score >= 90 {
		return LeadScore{Score: score, Priority: PriorityCritical, Recommendation: "Close immediately"}
	}
	return LeadScore{Score: score, Priority: PriorityNormal, Recommendation: "Nurture"}
}

type scoreLeadArgs struct {
	Budget  float64 `json:"budget" description:"Annual budget in USD"`
	Urgency string  `json:"urgency" description:"How soon the lead wants to buy, e.g. ASAP"`
}

// NewScoreLeadTool returns the score_lead tool.
func NewScoreLeadTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(ScoreLeadName,
		"Calculates win probability (0-100) based on budget and urgency.",
		scoreLeadArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			budget, err := number(args, "budget")
			if err != nil {
				return nil, err
			}
			urgency, _ := args["urgency"].(string)
			return ScoreLead(budget, urgency), nil
		})
}

// Outbox delivers approved outreach emails.
type Outbox interface {
	Send(ctx context.Context, recipient, strategy string) error
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(ctx context.Context, recipient, strategy string) error

// Send implements Outbox.
func (f OutboxFunc) Send(ctx context.Context, recipient, strategy string) error {
	return f(ctx, recipient, strategy)
}

// Email is one delivered outreach email.
type Email struct {
	Recipient string
	Strategy  string
}

// MemoryOutbox records sent emails in memory.
type MemoryOutbox struct {
	mu   sync.Mutex
	sent []Email
}

// Send implements Outbox.
func (o *MemoryOutbox) Send(_ context.Context, recipient, strategy string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Email{Recipient: recipient, Strategy: strategy})
	return nil
}

// Sent returns the delivered emails.
func (o *MemoryOutbox) Sent() []Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Email(nil), o.sent...)
}

type draftOutreachArgs struct {
	Recipient string `json:"recipient" description:"Company or person to contact"`
	Strategy  string `json:"strategy" description:"Pitch strategy for the email"`
}

// NewDraftOutreachTool returns the guarded draft_outreach tool. The email is
// handed to outbox only after a human approved the invocation.
func NewDraftOutreachTool(outbox Outbox) tool.Tool {
	return tool.NewFunctionToolFromStruct(DraftOutreachName,
		"Drafts an outreach email and pauses for human approval before sending it.",
		draftOutreachArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			recipient, _ := args["recipient"].(string)
			strategy, _ := args["strategy"].(string)

			approved, decided := tc.Confirmation()
			if !decided {
				tc.RequestConfirmation(
					fmt.Sprintf("SAFETY CHECK: Approve email to %s using strategy '%s'?", recipient, strategy),
					map[string]any{"recipient": recipient, "strategy": strategy},
				)
				return nil, nil
			}

			if !approved {
				return map[string]any{"status": StatusRejected, "info": "User blocked the email."}, nil
			}

			if outbox != nil {
				if err := outbox.Send(tc.Context(), recipient, strategy); err != nil {
					return nil, fmt.Errorf("send email: %w", err)
				}
			}
			return map[string]any{"status": StatusSent, "info": fmt.Sprintf("Email sent to %s.", recipient)}, nil
		}, tool.WithGuarded())
}

// NotFoundRate is returned for services without market data.
const NotFoundRate = "Service type not found in market database."

var marketRates = []struct {
	key  string
	rate string
}{
	{"crm", "Market Avg: $60,000/yr. Top Competitor: Salesforce ($75k)."},
	{"cloud storage", "Market Avg: $200/TB. Top Competitor: AWS ($210)."},
	{"consulting", "Market Avg: $250/hr. Top Competitor: McKinsey ($500)."},
}

// CompetitorPricing returns the market rate for the first known service
// contained in serviceType.
func CompetitorPricing(serviceType string) string {
	s := strings.ToLower(serviceType)
	for _, r := range marketRates {
		if strings.Contains(s, r.key) {
			return r.rate
		}
	}
	return NotFoundRate
}

type pricingArgs struct {
	ServiceType string `json:"service_type" description:"Service to price, e.g. CRM"`
}

// NewPricingTool returns the get_competitor_pricing tool.
func NewPricingTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(PricingName,
		"Returns current market rates for a specific service.",
		pricingArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			service, _ := args["service_type"].(string)
			return CompetitorPricing(service), nil
		})
}

func number(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, &tool.ToolError{Tool: ScoreLeadName, Code: tool.CodeValidation, Message: fmt.Sprintf("%s must be a number", key)}
	}
}
