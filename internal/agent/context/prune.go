package context

import "github.com/Ryvos/ryvos-sub000/pkg/models"

// PruneToBudget drops messages from the middle of the conversation until
// its estimated token count fits within maxTokens, or until nothing more
// can be safely dropped. It never removes:
//   - index 0 (the system/opening message),
//   - any message with Metadata.Protected set,
//   - the last minTail messages (the most recent turns, kept for
//     immediate continuity).
//
// Idempotent: calling it again on its own output is a no-op. Grounded on
// intelligence.rs's prune_to_budget.
func PruneToBudget(messages []models.ChatMessage, maxTokens, minTail int) []models.ChatMessage {
	if len(messages) == 0 {
		return messages
	}
	if minTail < 0 {
		minTail = 0
	}

	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)

	if EstimateConversationTokens(out) <= maxTokens {
		return out
	}

	tailStart := len(out) - minTail
	if tailStart < 1 {
		tailStart = 1
	}

	// Drop eligible middle messages (index > 0, not protected, before the
	// tail window) one at a time, lowest index first, until the budget is
	// met or nothing eligible remains.
	for EstimateConversationTokens(out) > maxTokens {
		dropIdx := -1
		for i := 1; i < tailStart && i < len(out); i++ {
			if out[i].IsProtected() {
				continue
			}
			dropIdx = i
			break
		}
		if dropIdx < 0 {
			break
		}
		out = append(out[:dropIdx], out[dropIdx+1:]...)
		tailStart--
		if tailStart < 1 {
			tailStart = 1
		}
	}

	return out
}
