package context

import (
	"context"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Summarizer condenses a group of messages sharing a phase tag into a
// short text summary, typically by calling the LLM provider with a
// dedicated summarization prompt. It is a function type rather than an
// interface so the agent package's mock/real providers can satisfy it
// without either package importing the other.
type Summarizer func(ctx context.Context, phase string, messages []models.ChatMessage) (string, error)

// SummarizeAndPrune groups the conversation's unprotected, non-tail
// messages by phase and replaces each phase's span with one protected
// assistant message holding that phase's summary, produced by summarize.
// If summarize returns an error for any phase, SummarizeAndPrune falls
// back to a pure PruneToBudget over the original messages rather than
// producing a partially summarized, inconsistent history.
//
// Grounded on intelligence.rs's summarize_and_prune.
func SummarizeAndPrune(ctx context.Context, messages []models.ChatMessage, maxTokens, minTail int, summarize Summarizer) ([]models.ChatMessage, error) {
	if len(messages) == 0 || EstimateConversationTokens(messages) <= maxTokens {
		out := make([]models.ChatMessage, len(messages))
		copy(out, messages)
		return out, nil
	}

	tailStart := len(messages) - minTail
	if tailStart < 1 {
		tailStart = 1
	}

	groups := groupByPhase(messages[1:tailStart])

	result := []models.ChatMessage{messages[0]}
	for _, g := range groups {
		if g.phase == "" || allProtected(g.messages) {
			result = append(result, g.messages...)
			continue
		}

		summary, err := summarize(ctx, g.phase, g.messages)
		if err != nil {
			return PruneToBudget(messages, maxTokens, minTail), nil
		}
		result = append(result, models.NewAssistantText(summary).WithMetadata(models.MessageMetadata{
			Protected: true,
			Phase:     g.phase,
		}))
	}
	result = append(result, messages[tailStart:]...)

	if EstimateConversationTokens(result) > maxTokens {
		return PruneToBudget(result, maxTokens, minTail), nil
	}
	return result, nil
}

type phaseGroup struct {
	phase    string
	messages []models.ChatMessage
}

// groupByPhase splits messages into contiguous runs sharing the same
// Phase() tag and the same protection status, preserving order. An empty
// phase tag is its own group and is never merged into a named-phase group,
// since untagged messages carry no safe summarization context. A protected
// message never shares a group with unprotected ones, so it is never
// replaced by a summary.
func groupByPhase(messages []models.ChatMessage) []phaseGroup {
	var groups []phaseGroup
	for _, m := range messages {
		phase := m.Phase()
		if len(groups) > 0 && groups[len(groups)-1].phase == phase && allProtected(groups[len(groups)-1].messages) == m.IsProtected() {
			groups[len(groups)-1].messages = append(groups[len(groups)-1].messages, m)
			continue
		}
		groups = append(groups, phaseGroup{phase: phase, messages: []models.ChatMessage{m}})
	}
	return groups
}

func allProtected(messages []models.ChatMessage) bool {
	for _, m := range messages {
		if !m.IsProtected() {
			return false
		}
	}
	return true
}
