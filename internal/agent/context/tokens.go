// Package context implements the agent's context-sizing policy (§4.8):
// token estimation, budget-aware pruning, phase-grouped summarization, and
// tool-output compaction.
//
// Grounded on original_source/crates/ryvos-agent/src/intelligence.rs.
package context

import (
	"strings"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// bytesPerToken is the heuristic stand-in ratio used by EstimateTokens.
// See the Open Questions section of SPEC_FULL.md: no BPE tokenizer exists
// anywhere in the retrieved example pack (the original implementation
// used tiktoken-rs's cl100k_base), so this module uses a documented
// character-count heuristic with the same func(string) int signature a
// real tokenizer would have, as a one-line swap point.
const bytesPerToken = 4

// EstimateTokens approximates the token count of s. Any non-empty string
// costs at least one token.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / bytesPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// messageOverheadTokens accounts for the per-message role/framing tokens a
// real tokenizer would add beyond the raw content text.
const messageOverheadTokens = 4

// EstimateMessageTokens approximates the token cost of one ChatMessage,
// summing across its content blocks plus a fixed per-message overhead.
func EstimateMessageTokens(m models.ChatMessage) int {
	total := messageOverheadTokens
	for _, b := range m.Content {
		switch b.Type {
		case models.ContentText:
			total += EstimateTokens(b.Text)
		case models.ContentThinking:
			total += EstimateTokens(b.Thinking)
		case models.ContentToolUse:
			total += EstimateTokens(b.Name) + EstimateTokens(string(b.Input))
		case models.ContentToolResult:
			total += EstimateTokens(b.Content)
		}
	}
	return total
}

// EstimateConversationTokens sums EstimateMessageTokens across every
// message in the slice.
func EstimateConversationTokens(messages []models.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// truncatedSentinel is appended to tool output truncated by
// CompactToolOutput. Per the Open Questions resolution, its own token
// cost is not counted against the budget that triggered the truncation —
// it is appended after the budget check, matching the original
// compact_tool_output.
const truncatedSentinel = "\n[truncated]"

// CompactToolOutput truncates content to at most maxTokens worth of text
// (by the same 4-bytes-per-token heuristic as EstimateTokens), preferring
// to cut at the last newline before the limit so output is not chopped
// mid-line. If content already fits, it is returned unchanged.
func CompactToolOutput(content string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(content) <= maxTokens {
		return content
	}

	limit := maxTokens * bytesPerToken
	if limit >= len(content) {
		return content
	}

	cut := limit
	if idx := strings.LastIndexByte(content[:limit], '\n'); idx > 0 {
		cut = idx
	}
	return content[:cut] + truncatedSentinel
}
