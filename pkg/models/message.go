// Package models provides the wire-format data types shared across the
// Ryvos agent core: conversation content, tool definitions/results, security
// tiers, approvals, and the agent event stream.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentBlockType discriminates the variants of ContentBlock.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentThinking   ContentBlockType = "thinking"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
)

// ContentBlock is a tagged variant: exactly the fields relevant to Type are
// populated. Message content is a sequence of these blocks.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// Text / Thinking
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// ToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a Text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

// ThinkingBlock builds a Thinking content block.
func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentThinking, Thinking: text}
}

// ToolUseBlock builds a ToolUse content block. input is nil when the
// accumulated JSON for the call failed to parse; see §9's note on
// accumulating partial tool input.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if input == nil {
		input = json.RawMessage("null")
	}
	return ContentBlock{Type: ContentToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a ToolResult content block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// MessageMetadata carries pruning/summarization hints for a ChatMessage.
type MessageMetadata struct {
	// Protected messages are never elided during pruning or summarization.
	Protected bool `json:"protected,omitempty"`
	// Phase groups messages for phase-aware summarization.
	Phase string `json:"phase,omitempty"`
}

// ChatMessage is one turn of conversation content.
type ChatMessage struct {
	Role      Role             `json:"role"`
	Content   []ContentBlock   `json:"content"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// IsProtected reports whether this message is exempt from pruning.
func (m ChatMessage) IsProtected() bool {
	return m.Metadata != nil && m.Metadata.Protected
}

// Phase returns the message's phase tag, or "" if unset.
func (m ChatMessage) Phase() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Phase
}

// Text concatenates all Text blocks in the message.
func (m ChatMessage) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == ContentText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUseIDs returns the IDs of every ToolUse block in the message.
func (m ChatMessage) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Content {
		if b.Type == ContentToolUse {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// WithMetadata returns a copy of the message with the given metadata attached.
func (m ChatMessage) WithMetadata(meta MessageMetadata) ChatMessage {
	m.Metadata = &meta
	return m
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}

// NewUserMessage builds a plain-text user message.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}, Timestamp: now()}
}

// NewAssistantText builds a plain-text assistant message.
func NewAssistantText(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}, Timestamp: now()}
}

// NewToolResultMessage builds the user-role message carrying one turn's
// ToolResult blocks, per §4.7 step 8.
func NewToolResultMessage(blocks []ContentBlock) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: blocks, Timestamp: now()}
}

// ToolDefinition describes a tool to the LLM provider.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolResult is the opaque output of a tool execution.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
