package openai

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
	"github.com/relaymesh/geminigate/internal/processors"
)

// Encode translates a validated ChatCompletionRequest into a Gemini
// generateContent body (spec §4.3 "OpenAI transformer. Encode").
func Encode(req *ChatCompletionRequest, upstreamModel string) (body []byte, streaming bool, err error) {
	greq := &gemini.GenerateContentRequest{}

	messages := req.Messages
	if len(messages) > 0 && messages[0].Role == "system" {
		greq.SystemInstruction = &gemini.Content{Parts: []*gemini.Part{{Text: textOf(messages[0].Content)}}}
		messages = messages[1:]
	}

	contents, err := encodeMessages(messages)
	if err != nil {
		return nil, false, err
	}

	greq.Contents = contents

	if len(req.Tools) > 0 {
		decls := make([]processors.ToolDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, processors.ToolDeclaration{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			})
		}

		greq.Tools = processors.ToGeminiTools(decls)
		greq.ToolConfig = processors.ToolCallingConfig(toolChoice(req.ToolChoice, req.Tools))
	}

	greq.GenerationConfig = processors.GenerationConfig(processors.GenerationKnobs{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}, 2.0)

	body, err = json.Marshal(greq)
	if err != nil {
		return nil, false, gatewayerr.Wrap(gatewayerr.Transform, err)
	}

	return body, req.Stream, nil
}

func encodeMessages(messages []Message) ([]*gemini.Content, error) {
	contents := make([]*gemini.Content, 0, len(messages))

	for _, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}

		var parts []*gemini.Part

		if msg.Role == "tool" {
			parts = []*gemini.Part{{
				FunctionResponse: &gemini.FunctionResponse{
					ID:       msg.ToolCallID,
					Response: map[string]any{"output": textOf(msg.Content)},
				},
			}}
			role = "user"
		} else if len(msg.Content.Parts) > 0 {
			items := make([]processors.ContentItem, 0, len(msg.Content.Parts))

			for _, part := range msg.Content.Parts {
				if part.Type == "image_url" && part.ImageURL != nil {
					items = append(items, processors.ContentItem{ImageURL: part.ImageURL.URL})
				} else {
					items = append(items, processors.ContentItem{Text: part.Text})
				}
			}

			parts = processors.ToGeminiParts(items)
		} else {
			parts = []*gemini.Part{{Text: textOf(msg.Content)}}
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)

			parts = append(parts, &gemini.Part{FunctionCall: &gemini.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args}})
		}

		contents = append(contents, &gemini.Content{Role: role, Parts: parts})
	}

	return contents, nil
}

func textOf(c MessageContent) string {
	if c.Text != nil {
		return *c.Text
	}

	for _, p := range c.Parts {
		if p.Type == "text" || p.Type == "" {
			return p.Text
		}
	}

	return ""
}

func toolChoice(raw json.RawMessage, tools []Tool) *processors.ToolChoice {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "none":
			return &processors.ToolChoice{Mode: "none"}
		case "required":
			return &processors.ToolChoice{Mode: "any"}
		default:
			return &processors.ToolChoice{Mode: "auto"}
		}
	}

	var asObject struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}

	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Function.Name != "" {
		return &processors.ToolChoice{Mode: "function", Name: asObject.Function.Name}
	}

	return nil
}
