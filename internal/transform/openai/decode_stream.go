package openai

import (
	"encoding/json"
	"fmt"

	"github.com/relaymesh/geminigate/internal/gemini"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/streams"
)

// doneEvent is the sentinel appended to the end of every OpenAI SSE stream.
var doneEvent = &httpx.StreamEvent{Type: "message", Data: []byte("[DONE]")}

// DecodeStream converts the upstream Gemini SSE stream into a stream of
// OpenAI chat.completion.chunk SSE frames (spec §4.3 "OpenAI transformer.
// Decode (streaming)").
func DecodeStream(upstream streams.Stream[*httpx.StreamEvent], clientModel, requestID string) streams.Stream[*httpx.StreamEvent] {
	withSentinel := streams.AppendStream(upstream, doneEvent)

	return streams.FilterMapErr(withSentinel, func(event *httpx.StreamEvent) (*httpx.StreamEvent, bool, error) {
		if event == doneEvent {
			return doneEvent, true, nil
		}

		if len(event.Data) == 0 {
			return nil, false, nil
		}

		var resp gemini.GenerateContentResponse
		if err := json.Unmarshal(event.Data, &resp); err != nil {
			return errorChunk(clientModel, requestID, "transform", err.Error()), true, nil
		}

		if len(resp.Candidates) == 0 {
			if msg, ok := upstreamErrorMessage(event.Data); ok {
				return errorChunk(clientModel, requestID, "upstream_error", msg), true, nil
			}
		}

		chunk, emit := convertChunk(&resp, clientModel, requestID)
		if !emit {
			return nil, false, nil
		}

		body, err := json.Marshal(chunk)
		if err != nil {
			return nil, false, err
		}

		return &httpx.StreamEvent{Type: "message", Data: body}, true, nil
	})
}

func convertChunk(resp *gemini.GenerateContentResponse, clientModel, requestID string) (*ChatCompletionChunk, bool) {
	if len(resp.Candidates) == 0 {
		return nil, false
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
					continue
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

	delta := &Delta{Content: text, ToolCalls: toolCalls}

	var finishReason *string

	if candidate.FinishReason != "" {
		mapped := mapFinishReason(candidate.FinishReason)
		if len(toolCalls) > 0 {
			mapped = "tool_calls"
		}
		finishReason = &mapped
	}

	if text == "" && finishReason == nil && len(toolCalls) == 0 {
		return nil, false
	}

	return &ChatCompletionChunk{
		ID:      "chatcmpl-" + requestID,
		Object:  "chat.completion.chunk",
		Model:   clientModel,
		Choices: []Choice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}, true
}

// upstreamErrorMessage reports whether a candidate-less frame is actually
// Gemini's error envelope ({"error":{"code","message","status"}}) rather
// than an empty/heartbeat frame, so it can be surfaced as an error-typed
// chunk instead of silently dropped.
func upstreamErrorMessage(data []byte) (string, bool) {
	var errResp gemini.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return "", false
	}

	if errResp.Error.Message == "" {
		return "", false
	}

	return errResp.Error.Message, true
}

func errorChunk(clientModel, requestID, kind, message string) *httpx.StreamEvent {
	chunk := &ChatCompletionChunk{
		ID:     "chatcmpl-" + requestID,
		Object: "chat.completion.chunk",
		Model:  clientModel,
		Choices: []Choice{{
			Index: 0,
			Delta: &Delta{Content: ""},
		}},
	}

	body, _ := json.Marshal(struct {
		*ChatCompletionChunk
		Error *OpenAIErrorInline `json:"error"`
	}{chunk, &OpenAIErrorInline{Message: message, Type: kind}})

	return &httpx.StreamEvent{Type: "message", Data: body}
}

// OpenAIErrorInline is the shape OpenAI embeds in an error-typed stream
// chunk, distinct from the top-level error envelope used for unary errors.
type OpenAIErrorInline struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
