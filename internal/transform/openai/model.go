// Package openai implements the OpenAI chat-completions dialect: encoding a
// validated client request into the Gemini wire format and decoding a
// Gemini response back into OpenAI's chat.completion shape.
package openai

import (
	"encoding/json"
	"errors"
)

// ChatCompletionRequest is the inbound /v1/chat/completions body.
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Tools       []Tool         `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	MaxTokens   *int64         `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

// Message is one chat turn. Content may be a plain string or an array of
// typed parts (text/image_url), handled by MessageContent's custom codec.
type Message struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content,omitzero"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
}

// MessageContent unmarshals either a bare string or an array of
// ContentPart, mirroring what real OpenAI clients send.
type MessageContent struct {
	Text  *string
	Parts []ContentPart
}

func (c MessageContent) IsZero() bool {
	return c.Text == nil && len(c.Parts) == 0
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}

	if c.Text != nil {
		return json.Marshal(*c.Text)
	}

	return json.Marshal("")
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		c.Text = &str
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		return nil
	}

	return errors.New("openai: content must be a string or an array of parts")
}

// ContentPart is one element of a multi-part message content array.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Tool is a function tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a model-issued function invocation, echoed back by the client
// on a subsequent turn as a "tool" role message.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletionResponse is the unary /v1/chat/completions response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	Delta        *Delta   `json:"delta,omitempty"`
	FinishReason *string  `json:"finish_reason"`
}

// Delta is the partial-message shape used by streaming chunks.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatCompletionChunk is one `data:` frame of a streaming response.
type ChatCompletionChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}
