package claude

import (
	"encoding/json"
	"fmt"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
)

var stopReasonMap = map[string]string{
	"STOP":       "end_turn",
	"MAX_TOKENS": "max_tokens",
	"SAFETY":     "end_turn",
	"RECITATION": "end_turn",
	"TOOL_CALL":  "tool_use",
}

// Decode translates a unary Gemini response into a Claude MessageResponse
// (spec §4.3 "Claude transformer. Decode (unary)").
func Decode(resp *gemini.GenerateContentResponse, clientModel, requestID string, thinkingEnabled bool) (*MessageResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, gatewayerr.New(gatewayerr.Transform, "upstream response has no candidates")
	}

	candidate := resp.Candidates[0]

	blocks, hasToolUse, err := decodeBlocks(candidate, requestID, thinkingEnabled)
	if err != nil {
		return nil, err
	}

	if len(blocks) == 0 {
		blocks = []ContentBlock{{Type: "text", Text: ""}}
	}

	stopReason := mapStopReason(candidate.FinishReason)
	if hasToolUse {
		stopReason = "tool_use"
	}

	out := &MessageResponse{
		ID:         "msg_" + requestID,
		Type:       "message",
		Role:       "assistant",
		Model:      clientModel,
		Content:    blocks,
		StopReason: stopReason,
	}

	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	return out, nil
}

func decodeBlocks(candidate *gemini.Candidate, requestID string, thinkingEnabled bool) ([]ContentBlock, bool, error) {
	if candidate.Content == nil {
		return nil, false, nil
	}

	var (
		blocks     []ContentBlock
		hasToolUse bool
	)

	for i, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, false, gatewayerr.Wrap(gatewayerr.Transform, err)
			}

			blocks = append(blocks, ContentBlock{
				Type:  "tool_use",
				ID:    fmt.Sprintf("toolu_%s_%d", requestID, i),
				Name:  part.FunctionCall.Name,
				Input: args,
			})

			hasToolUse = true

		case part.Thought:
			if !thinkingEnabled {
				continue
			}

			blocks = append(blocks, ContentBlock{Type: "thinking", Thinking: part.Text})

		default:
			if part.Text != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: part.Text})
			}
		}
	}

	return blocks, hasToolUse, nil
}

func mapStopReason(reason string) string {
	if mapped, ok := stopReasonMap[reason]; ok {
		return mapped
	}

	return "end_turn"
}
