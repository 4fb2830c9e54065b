package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
)

// TranscriptSummarizer is a deterministic core.Summarizer that renders the
// replaced range as a compact line-per-event transcript. A leading summary is
// carried over verbatim so older context survives repeated compaction.
type TranscriptSummarizer struct {
	// MaxPayload truncates rendered payloads; 0 means no limit.
	MaxPayload int
}

// Summarize implements core.Summarizer.
func (s TranscriptSummarizer) Summarize(_ context.Context, events []core.Event) (string, error) {
	var b strings.Builder
	for _, ev := range events {
		line := s.render(ev)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

func (s TranscriptSummarizer) render(ev core.Event) string {
	switch ev.Kind {
	case core.KindSummary:
		return ev.Text
	case core.KindUserMessage:
		return fmt.Sprintf("[turn %d] %s: %s", ev.Turn, ev.Author, ev.Text)
	case core.KindActionRequest:
		return fmt.Sprintf("[turn %d] call %s %s %s", ev.Turn, ev.Action.Kind, ev.Action.Name, s.clip(util.Stringify(ev.Action.Args)))
	case core.KindActionResult:
		if ev.Result.Failed() {
			return fmt.Sprintf("[turn %d] %s failed (%s): %s", ev.Turn, ev.Result.Name, ev.Result.Code, ev.Result.Error)
		}
		return fmt.Sprintf("[turn %d] %s -> %s", ev.Turn, ev.Result.Name, s.clip(util.Stringify(ev.Result.Payload)))
	case core.KindPendingConfirmation:
		return fmt.Sprintf("[turn %d] asked: %s", ev.Turn, ev.Confirmation.Hint)
	case core.KindConfirmationDecision:
		verdict := "rejected"
		if ev.Decision.Approved {
			verdict = "approved"
		}
		return fmt.Sprintf("[turn %d] operator %s", ev.Turn, verdict)
	case core.KindFinalAnswer:
		return fmt.Sprintf("[turn %d] answer: %s", ev.Turn, ev.Text)
	default:
		return ""
	}
}

func (s TranscriptSummarizer) clip(text string) string {
	if s.MaxPayload > 0 && len(text) > s.MaxPayload {
		return text[:s.MaxPayload] + "..."
	}
	return text
}
