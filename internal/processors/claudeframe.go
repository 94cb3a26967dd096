package processors

import "encoding/json"

// ClaudeBlockType is one of the three content-block kinds a Claude stream
// can emit (spec §4.2).
type ClaudeBlockType string

const (
	ClaudeBlockThinking ClaudeBlockType = "thinking"
	ClaudeBlockText     ClaudeBlockType = "text"
	ClaudeBlockToolUse  ClaudeBlockType = "tool_use"
)

// ClaudeEvent is one SSE frame of the Claude messages streaming protocol:
// `event: <Type>\ndata: <json of the rest>\n\n`.
type ClaudeEvent struct {
	Type string
	Data any
}

// MessageStart builds the opening frame of a Claude stream.
func MessageStart(id, model string) ClaudeEvent {
	return ClaudeEvent{
		Type: "message_start",
		Data: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            id,
				"type":          "message",
				"role":          "assistant",
				"model":         model,
				"content":       []any{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		},
	}
}

// Ping builds the keep-alive frame sent right after message_start.
func Ping() ClaudeEvent {
	return ClaudeEvent{Type: "ping", Data: map[string]any{"type": "ping"}}
}

// ContentBlockStart opens a new content block at the given index.
func ContentBlockStart(index int, blockType ClaudeBlockType, toolName, toolID string) ClaudeEvent {
	block := map[string]any{"type": string(blockType)}

	switch blockType {
	case ClaudeBlockText:
		block["text"] = ""
	case ClaudeBlockThinking:
		block["thinking"] = ""
	case ClaudeBlockToolUse:
		block["id"] = toolID
		block["name"] = toolName
		block["input"] = map[string]any{}
	}

	return ClaudeEvent{
		Type: "content_block_start",
		Data: map[string]any{"type": "content_block_start", "index": index, "content_block": block},
	}
}

// ContentBlockDelta emits a partial update for the block at index.
func ContentBlockDelta(index int, blockType ClaudeBlockType, text string, partialJSON string) ClaudeEvent {
	var delta map[string]any

	switch blockType {
	case ClaudeBlockThinking:
		delta = map[string]any{"type": "thinking_delta", "thinking": text}
	case ClaudeBlockToolUse:
		delta = map[string]any{"type": "input_json_delta", "partial_json": partialJSON}
	default:
		delta = map[string]any{"type": "text_delta", "text": text}
	}

	return ClaudeEvent{
		Type: "content_block_delta",
		Data: map[string]any{"type": "content_block_delta", "index": index, "delta": delta},
	}
}

// ContentBlockStop closes the block at index.
func ContentBlockStop(index int) ClaudeEvent {
	return ClaudeEvent{Type: "content_block_stop", Data: map[string]any{"type": "content_block_stop", "index": index}}
}

// MessageDelta carries the final stop reason and cumulative usage.
func MessageDelta(stopReason string, outputTokens int64) ClaudeEvent {
	return ClaudeEvent{
		Type: "message_delta",
		Data: map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": stopReason, "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": outputTokens},
		},
	}
}

// MessageStop is the terminal frame of a Claude stream.
func MessageStop() ClaudeEvent {
	return ClaudeEvent{Type: "message_stop", Data: map[string]any{"type": "message_stop"}}
}

// Marshal renders an event's data payload to JSON for the SSE `data:` line.
func (e ClaudeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e.Data)
}
