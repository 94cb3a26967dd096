package openai

import (
	"encoding/json"
	"fmt"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
)

var finishReasonMap = map[string]string{
	"STOP":       "stop",
	"MAX_TOKENS": "length",
	"SAFETY":     "content_filter",
	"RECITATION": "content_filter",
}

// Decode translates a unary Gemini response into an OpenAI
// ChatCompletionResponse (spec §4.3 "OpenAI transformer. Decode (unary)").
func Decode(resp *gemini.GenerateContentResponse, clientModel string, requestID string) (*ChatCompletionResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, gatewayerr.New(gatewayerr.Transform, "upstream response has no candidates")
	}

	candidate := resp.Candidates[0]

	var (
		text      string
		toolCalls []ToolCall
	)

	if candidate.Content != nil {
		for i, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
				}

				toolCalls = append(toolCalls, ToolCall{
					ID:   fmt.Sprintf("call_%s_%d", requestID, i),
					Type: "function",
					Function: ToolCallFunction{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					},
				})

				continue
			}

			if !part.Thought {
				text += part.Text
			}
		}
	}

	finishReason := mapFinishReason(candidate.FinishReason)
	if len(toolCalls) > 0 {
		finishReason = "tool_calls"
	}

	message := &Message{Role: "assistant", Content: MessageContent{Text: &text}, ToolCalls: toolCalls}

	resp2 := &ChatCompletionResponse{
		ID:      "chatcmpl-" + requestID,
		Object:  "chat.completion",
		Model:   clientModel,
		Choices: []Choice{{Index: 0, Message: message, FinishReason: &finishReason}},
	}

	if resp.UsageMetadata != nil {
		resp2.Usage = &Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return resp2, nil
}

func mapFinishReason(reason string) string {
	if mapped, ok := finishReasonMap[reason]; ok {
		return mapped
	}

	return "stop"
}
