package sales

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
)

// Lead is the information extracted from a lead message such as
// "New Lead: Acme Corp. Budget: $60,000. Urgency: ASAP. They need a CRM."
type Lead struct {
	Company string
	Budget  float64
	Urgency string
	Service string
}

var (
	companyRe = regexp.MustCompile(`(?i)new lead:\s*([^.]+)`)
	budgetRe  = regexp.MustCompile(`(?i)budget:\s*\$?\s*([\d,]+(?:\.\d+)?)\s*(k\b)?`)
	urgencyRe = regexp.MustCompile(`(?i)urgency:\s*([a-z]+)`)
	serviceRe = regexp.MustCompile(`(?i)\bneeds?\s+(?:an?\s+)?([^.]+)`)
)

// ParseLead extracts a Lead from free text. Missing fields stay empty.
func ParseLead(text string) Lead {
	var lead Lead
	if m := companyRe.FindStringSubmatch(text); m != nil {
		lead.Company = strings.TrimSpace(m[1])
	}
	if m := budgetRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			if m[2] != "" {
				v *= 1000
			}
			lead.Budget = v
		}
	}
	if m := urgencyRe.FindStringSubmatch(text); m != nil {
		lead.Urgency = m[1]
	}
	if m := serviceRe.FindStringSubmatch(text); m != nil {
		lead.Service = strings.TrimSpace(m[1])
	}
	return lead
}

// Playbook is a deterministic oracle for the Predator sales agent:
//
//  1. score the lead with score_lead
//  2. if the priority is CRITICAL, ask market_oracle for competitor pricing
//  3. draft the outreach email (guarded, needs human approval)
//  4. answer with the outreach status and the market rate
//
// Every decision is derived from the events since the last user message, so
// the playbook continues correctly after a pause or a process restart.
type Playbook struct{}

var _ core.Oracle = Playbook{}

// Next implements core.Oracle.
func (Playbook) Next(_ context.Context, state core.State) (core.Action, error) {
	lead := ParseLead(state.LastUserText())
	events := sinceLastUser(state.Events)

	scored, ok := lastResult(events, ScoreLeadName)
	if !ok {
		return core.CallTool(ScoreLeadName, map[string]any{"budget": lead.Budget, "urgency": lead.Urgency}), nil
	}
	if scored.Failed() {
		return core.FinalAnswer(fmt.Sprintf("Could not score lead %s: %s", company(lead), scored.Error)), nil
	}
	score := field(scored.Payload, "score")
	priority := field(scored.Payload, "priority")

	market, asked := lastResult(events, MarketOracleName)
	if priority == PriorityCritical && !asked && hasAgent(state.Agents, MarketOracleName) {
		return core.CallAgent(MarketOracleName, fmt.Sprintf("Competitor pricing for %s", service(lead))), nil
	}

	outreach, drafted := lastResult(events, DraftOutreachName)
	if !drafted {
		return core.CallTool(DraftOutreachName, map[string]any{
			"recipient": company(lead),
			"strategy":  strategy(field(scored.Payload, "recommendation"), market, asked),
		}), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lead %s scored %s (%s).", company(lead), score, priority)
	if asked {
		if market.Failed() {
			fmt.Fprintf(&b, " Market rate unavailable: %s.", market.Error)
		} else {
			fmt.Fprintf(&b, " Market rate: %s", util.Stringify(market.Payload))
		}
	}
	if outreach.Failed() {
		fmt.Fprintf(&b, " Outreach failed: %s", outreach.Error)
	} else {
		fmt.Fprintf(&b, " Outreach %s: %s", field(outreach.Payload, "status"), field(outreach.Payload, "info"))
	}
	return core.FinalAnswer(b.String()), nil
}

// MarketOracle is the deterministic oracle of the market intelligence peer:
// it looks up competitor pricing for the request and answers with the rate.
type MarketOracle struct{}

var _ core.Oracle = MarketOracle{}

// Next implements core.Oracle.
func (MarketOracle) Next(_ context.Context, state core.State) (core.Action, error) {
	res, ok := lastResult(sinceLastUser(state.Events), PricingName)
	if !ok {
		return core.CallTool(PricingName, map[string]any{"service_type": state.LastUserText()}), nil
	}
	if res.Failed() {
		return core.FinalAnswer("Pricing unavailable: " + res.Error), nil
	}
	return core.FinalAnswer(util.Stringify(res.Payload)), nil
}

func sinceLastUser(events []core.Event) []core.Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == core.KindUserMessage {
			return events[i+1:]
		}
	}
	return events
}

func lastResult(events []core.Event, name string) (core.ActionResult, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if ev := events[i]; ev.Kind == core.KindActionResult && ev.Result != nil && ev.Result.Name == name {
			return *ev.Result, true
		}
	}
	return core.ActionResult{}, false
}

func hasAgent(agents []core.AgentSpec, name string) bool {
	for _, a := range agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

// field renders a top-level field of a normalized object payload.
func field(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func strategy(recommendation string, market core.ActionResult, asked bool) string {
	if recommendation == "" {
		recommendation = "Nurture"
	}
	if asked && !market.Failed() {
		return fmt.Sprintf("%s. Benchmark: %s", recommendation, util.Stringify(market.Payload))
	}
	return recommendation
}

func company(l Lead) string {
	if l.Company == "" {
		return "the lead"
	}
	return l.Company
}

func service(l Lead) string {
	if l.Service == "" {
		return "the requested service"
	}
	return l.Service
}
