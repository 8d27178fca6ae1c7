package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Ryvos/ryvos-sub000/internal/approval"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// consumeEvents drains sub until the bus closes it, rendering stream text
// inline, tool activity and approval prompts as bracketed lines, and
// collecting an approval decision from in when the gate needs one. It is
// the CLI's only AgentEvent consumer; both buildRunCmd and buildChatCmd
// reuse it per run.
func consumeEvents(out io.Writer, in io.Reader, broker *approval.Broker, sub *eventbus.Subscription, done chan<- struct{}) {
	defer close(done)
	reader := bufio.NewReader(in)

	for ev := range sub.Events() {
		switch ev.Type {
		case models.EventStreamDelta:
			if ev.Delta != nil && ev.Delta.Kind == models.DeltaText {
				fmt.Fprint(out, ev.Delta.Text)
			}

		case models.EventToolCallRequested:
			fmt.Fprintf(out, "\n[tool] %s(%s)\n", ev.ToolName, string(ev.ToolInput))

		case models.EventToolCallResult:
			status := "ok"
			content := ""
			if ev.Result != nil {
				content = ev.Result.Content
			}
			if ev.IsError {
				status = "error"
			}
			fmt.Fprintf(out, "[tool result: %s] %s\n", status, truncate(content, 500))

		case models.EventToolBlocked:
			fmt.Fprintf(out, "\n[blocked] %s (tier %s): %s\n", ev.ToolName, ev.ToolTier, ev.Message)

		case models.EventApprovalRequested:
			if ev.Approval == nil {
				continue
			}
			fmt.Fprintf(out, "\n[approval needed] %s wants to run %q (tier %s): %s\napprove? [y/N] ",
				ev.ToolName, ev.ToolName, ev.ToolTier, ev.Approval.Reason)
			line, _ := reader.ReadString('\n')
			decision := models.ApprovalDenied
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
				decision = models.ApprovalApproved
			}
			broker.Resolve(models.ApprovalResponse{RequestID: ev.Approval.RequestID, Decision: decision})

		case models.EventReflexionHint:
			fmt.Fprintf(out, "\n[reflexion] %s\n", ev.Hint)

		case models.EventGuardianDoomLoop:
			fmt.Fprintf(out, "\n[guardian] doom loop: %s called %d times in a row\n", ev.ToolName, ev.ConsecutiveCalls)

		case models.EventGuardianBudgetAlert:
			kind := "warning"
			if ev.IsHardStop {
				kind = "hard stop"
			}
			fmt.Fprintf(out, "\n[guardian] budget %s: %d/%d tokens\n", kind, ev.TokensUsed, ev.TokensBudget)

		case models.EventGuardianStall:
			fmt.Fprintf(out, "\n[guardian] stalled: no progress for %.0fs\n", ev.ElapsedSecs)

		case models.EventGuardianHint:
			fmt.Fprintf(out, "\n[guardian] %s\n", ev.Hint)

		case models.EventRunError:
			fmt.Fprintf(out, "\n[error] %s\n", ev.Err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}

// lineScanner reads newline-delimited input one line at a time, trimming the
// trailing newline. It wraps bufio.Scanner so buildChatCmd's loop doesn't
// juggle io.EOF directly.
type lineScanner struct {
	scanner *bufio.Scanner
}

func newLineScanner(in io.Reader) *lineScanner {
	return &lineScanner{scanner: bufio.NewScanner(in)}
}

// next returns the next line and true, or ("", false) at EOF.
func (s *lineScanner) next() (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}
