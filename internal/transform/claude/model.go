// Package claude implements the Claude messages dialect.
package claude

import "encoding/json"

// MessageRequest is the inbound /v1/messages body.
type MessageRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	System      *SystemPrompt   `json:"system,omitempty"`
	MaxTokens   int64           `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int64          `json:"top_k,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Tools       []Tool          `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Thinking    *Thinking       `json:"thinking,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

// SystemPrompt accepts either a bare string or Claude's multi-block form.
type SystemPrompt struct {
	Prompt          *string
	MultiplePrompts []SystemBlock
}

type SystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Prompt = &str
		return nil
	}

	var blocks []SystemBlock

	err := json.Unmarshal(data, &blocks)
	if err != nil {
		return err
	}

	s.MultiplePrompts = blocks

	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.Prompt != nil {
		return json.Marshal(*s.Prompt)
	}

	return json.Marshal(s.MultiplePrompts)
}

// Text concatenates the prompt into a single string regardless of shape.
func (s *SystemPrompt) Text() string {
	if s == nil {
		return ""
	}

	if s.Prompt != nil {
		return *s.Prompt
	}

	out := ""
	for _, b := range s.MultiplePrompts {
		out += b.Text
	}

	return out
}

// Message is one turn; Content may be a bare string or an array of blocks.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

type MessageContent struct {
	Text   *string
	Blocks []ContentBlock
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		c.Text = &str
		return nil
	}

	var blocks []ContentBlock

	err := json.Unmarshal(data, &blocks)
	if err != nil {
		return err
	}

	c.Blocks = blocks

	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.Blocks) > 0 {
		return json.Marshal(c.Blocks)
	}

	if c.Text != nil {
		return json.Marshal(*c.Text)
	}

	return json.Marshal("")
}

// ContentBlock is one element of a Claude content array: text, image,
// tool_use, or tool_result.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Source    *ImageSource    `json:"source,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Tool is a client-defined function tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	Type        string          `json:"type,omitempty"`
}

// Thinking is Claude's extended-thinking request config (spec §3/§4.2).
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens *int64 `json:"budget_tokens,omitempty"`
}

// MessageResponse is the unary /v1/messages response.
type MessageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
