package claude

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/streams"
)

func frame(t *testing.T, payload map[string]any) *httpx.StreamEvent {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return &httpx.StreamEvent{Type: "message", Data: data}
}

// TestDecodeStream_ThinkingThenText mirrors spec example 3: a thought-text
// part, then a regular text part, then a finishReason frame.
func TestDecodeStream_ThinkingThenText(t *testing.T) {
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{{"text": "pondering", "thought": true}}},
		}},
	})
	f2 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": "hello"}}},
			"finishReason": "STOP",
		}},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{f1, f2})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", true)

	events, err := streams.All(out)
	require.NoError(t, err)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}

	require.Equal(t, []string{
		"message_start",
		"ping",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, types)

	var delta0 map[string]any
	require.NoError(t, json.Unmarshal(events[3].Data, &delta0))
	require.Equal(t, "thinking_delta", delta0["delta"].(map[string]any)["type"])

	var delta1 map[string]any
	require.NoError(t, json.Unmarshal(events[6].Data, &delta1))
	require.Equal(t, "text_delta", delta1["delta"].(map[string]any)["type"])

	var msgDelta map[string]any
	require.NoError(t, json.Unmarshal(events[8].Data, &msgDelta))
	require.Equal(t, "end_turn", msgDelta["delta"].(map[string]any)["stop_reason"])
}

func TestDecodeStream_ThinkingSuppressedWhenDisabled(t *testing.T) {
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": "pondering", "thought": true}, {"text": "hi"}}},
			"finishReason": "STOP",
		}},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{f1})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", false)

	events, err := streams.All(out)
	require.NoError(t, err)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}

	require.Equal(t, []string{
		"message_start",
		"ping",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, types)
}

func TestDecodeStream_ToolUseSetsStopReason(t *testing.T) {
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{{
				"functionCall": map[string]any{"name": "get_weather", "args": map[string]any{"location": "Boston"}},
			}}},
			"finishReason": "STOP",
		}},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{f1})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", false)

	events, err := streams.All(out)
	require.NoError(t, err)

	var msgDelta map[string]any
	require.NoError(t, json.Unmarshal(events[len(events)-2].Data, &msgDelta))
	require.Equal(t, "tool_use", msgDelta["delta"].(map[string]any)["stop_reason"])
}

func TestDecodeStream_MalformedFrameSkippedWithoutAborting(t *testing.T) {
	malformed := &httpx.StreamEvent{Type: "message", Data: []byte("not json")}
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": "hi"}}},
			"finishReason": "STOP",
		}},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{malformed, f1})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", false)

	events, err := streams.All(out)
	require.NoError(t, err)
	require.Equal(t, "message_stop", events[len(events)-1].Type)
}

func TestDecodeStream_ConsecutiveToolCallsGetSeparateBlocks(t *testing.T) {
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{
				{"functionCall": map[string]any{"name": "foo", "args": map[string]any{"a": 1}}},
				{"functionCall": map[string]any{"name": "bar", "args": map[string]any{"b": 2}}},
			}},
			"finishReason": "STOP",
		}},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{f1})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", false)

	events, err := streams.All(out)
	require.NoError(t, err)

	var starts []map[string]any
	for _, e := range events {
		if e.Type != "content_block_start" {
			continue
		}

		var body map[string]any
		require.NoError(t, json.Unmarshal(e.Data, &body))
		starts = append(starts, body)
	}

	require.Len(t, starts, 2)

	block0, _ := starts[0]["content_block"].(map[string]any)
	block1, _ := starts[1]["content_block"].(map[string]any)

	require.Equal(t, "foo", block0["name"])
	require.Equal(t, "bar", block1["name"])
	require.NotEqual(t, block0["id"], block1["id"])
}

func TestDecodeStream_UpstreamErrorEnvelopeEmitsErrorFrameAndCloses(t *testing.T) {
	f1 := frame(t, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{{"text": "hi"}}},
		}},
	})
	errFrame := frame(t, map[string]any{
		"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
	})

	src := streams.SliceStream([]*httpx.StreamEvent{f1, errFrame})

	out := DecodeStream(context.Background(), src, "claude-3-5-sonnet-20241022", "req-1", false)

	events, err := streams.All(out)
	require.NoError(t, err)

	last := events[len(events)-1]
	require.Equal(t, "error", last.Type)

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Data, &body))

	errDetail, _ := body["error"].(map[string]any)
	require.Equal(t, "quota exceeded", errDetail["message"])
}
