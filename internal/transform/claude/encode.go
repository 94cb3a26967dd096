package claude

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
	"github.com/relaymesh/geminigate/internal/processors"
)

// Encode translates a validated MessageRequest into a Gemini generateContent
// body (spec §4.3 "Claude transformer. Encode").
func Encode(req *MessageRequest, upstreamModel string) (body []byte, streaming bool, err error) {
	greq := &gemini.GenerateContentRequest{}

	contents, err := encodeMessages(req.Messages, req.System.Text())
	if err != nil {
		return nil, false, err
	}

	greq.Contents = contents

	if len(req.Tools) > 0 {
		decls := make([]processors.ToolDeclaration, 0, len(req.Tools))

		for _, tool := range req.Tools {
			if builtin, ok := processors.NormalizeClaudeBuiltin(tool.Type); ok {
				decls = append(decls, builtin)
				continue
			}

			decls = append(decls, processors.ToolDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			})
		}

		greq.Tools = processors.ToGeminiTools(decls)
		greq.ToolConfig = processors.ToolCallingConfig(toolChoice(req.ToolChoice, req.Tools))
	}

	genConfig := processors.GenerationConfig(processors.GenerationKnobs{
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		MaxTokens:     nonZeroPtr(req.MaxTokens),
		StopSequences: req.StopSequences,
	}, 1.0)

	if processors.ModelSupportsThinking(upstreamModel) {
		genConfig.ThinkingConfig = processors.Thinking(thinkingRequest(req.Thinking), upstreamModel, genConfig.MaxOutputTokens)
	}

	greq.GenerationConfig = genConfig

	body, err = json.Marshal(greq)
	if err != nil {
		return nil, false, gatewayerr.Wrap(gatewayerr.Transform, err)
	}

	return body, req.Stream, nil
}

func encodeMessages(messages []Message, system string) ([]*gemini.Content, error) {
	contents := make([]*gemini.Content, 0, len(messages))

	for i, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}

		parts, err := encodeContentBlocks(msg)
		if err != nil {
			return nil, err
		}

		if i == 0 && system != "" && len(parts) > 0 {
			if parts[0].Text != "" {
				parts[0].Text = system + "\n\n" + parts[0].Text
			} else {
				parts = append([]*gemini.Part{{Text: system}}, parts...)
			}
		}

		contents = append(contents, &gemini.Content{Role: role, Parts: parts})
	}

	return contents, nil
}

func encodeContentBlocks(msg Message) ([]*gemini.Part, error) {
	if msg.Content.Text != nil {
		return []*gemini.Part{{Text: *msg.Content.Text}}, nil
	}

	parts := make([]*gemini.Part, 0, len(msg.Content.Blocks))

	for _, block := range msg.Content.Blocks {
		switch block.Type {
		case "text":
			parts = append(parts, &gemini.Part{Text: block.Text})

		case "image":
			if block.Source == nil {
				continue
			}

			part, err := processors.ImagePartFromBase64(block.Source.MediaType, block.Source.Data)
			if err != nil {
				parts = append(parts, &gemini.Part{Text: "[Image processing failed: " + err.Error() + "]"})
				continue
			}

			parts = append(parts, part)

		case "tool_use":
			var args map[string]any
			_ = json.Unmarshal(block.Input, &args)

			parts = append(parts, &gemini.Part{FunctionCall: &gemini.FunctionCall{ID: block.ID, Name: block.Name, Args: args}})

		case "tool_result":
			parts = append(parts, &gemini.Part{FunctionResponse: &gemini.FunctionResponse{
				ID:       block.ToolUseID,
				Response: map[string]any{"output": toolResultText(block.Content)},
			}})

		default:
			if block.Text != "" {
				parts = append(parts, &gemini.Part{Text: block.Text})
			}
		}
	}

	return parts, nil
}

func toolResultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(content, &asString); err == nil {
		return asString
	}

	return string(content)
}

func thinkingRequest(t *Thinking) *processors.ThinkingRequest {
	if t == nil {
		return &processors.ThinkingRequest{Enabled: false}
	}

	return &processors.ThinkingRequest{Enabled: t.Type == "enabled", Budget: t.BudgetTokens}
}

func toolChoice(raw json.RawMessage, tools []Tool) *processors.ToolChoice {
	if len(raw) == 0 {
		return nil
	}

	var asObject struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil
	}

	switch asObject.Type {
	case "auto":
		return &processors.ToolChoice{Mode: "auto"}
	case "any":
		return &processors.ToolChoice{Mode: "any"}
	case "none":
		return &processors.ToolChoice{Mode: "none"}
	case "tool":
		return &processors.ToolChoice{Mode: "function", Name: asObject.Name}
	default:
		return nil
	}
}

func nonZeroPtr(v int64) *int64 {
	if v <= 0 {
		return nil
	}

	return &v
}
