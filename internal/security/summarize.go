package security

import "encoding/json"

// summarizeInput builds the human-readable input_summary carried on an
// ApprovalRequest: a tool-specific field extraction, falling back to a
// capped JSON preview for tools without a dedicated case. Grounded on
// original_source/crates/ryvos-agent/src/gate.rs's summarize_input.
func summarizeInput(toolName string, rawInput []byte) string {
	var fields map[string]any
	_ = json.Unmarshal(rawInput, &fields)

	switch toolName {
	case "shell", "bash":
		return stringField(fields, "command", "<unknown command>")
	case "read_file", "write", "edit":
		return stringField(fields, "path", stringField(fields, "file_path", "<unknown file>"))
	case "web_search":
		return stringField(fields, "query", "<unknown query>")
	case "spawn_agent":
		return truncate(stringField(fields, "prompt", "<unknown prompt>"), 80)
	default:
		return truncate(string(rawInput), 120)
	}
}

func stringField(fields map[string]any, key, fallback string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
