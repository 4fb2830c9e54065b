package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/model"
	"github.com/hupe1980/predator/session"
)

const summarizerInstructions = `Summarize the following agent transcript for later reference.
Keep every decision, tool result, remote answer and open question. Be concise.`

// ModelSummarizer is a core.Summarizer backed by a language model. The
// replaced events are first rendered by session.TranscriptSummarizer.
type ModelSummarizer struct {
	model      model.Model
	transcript session.TranscriptSummarizer
}

var _ core.Summarizer = (*ModelSummarizer)(nil)

// NewModelSummarizer creates a ModelSummarizer.
func NewModelSummarizer(m model.Model) *ModelSummarizer {
	return &ModelSummarizer{model: m, transcript: session.TranscriptSummarizer{MaxPayload: 2000}}
}

// Summarize implements core.Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, events []core.Event) (string, error) {
	text, err := s.transcript.Summarize(ctx, events)
	if err != nil {
		return "", err
	}

	resp, err := s.model.Generate(ctx, model.Request{
		Instructions: summarizerInstructions,
		Messages:     []model.Message{{Role: model.RoleUser, Text: text}},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", fmt.Errorf("summarize: model returned no text")
	}

	return summary, nil
}
