package claude

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/processors"
	"github.com/relaymesh/geminigate/internal/streams"
)

// streamState is the explicit state of the Claude decode state machine
// (spec §9 Design Notes: "model the Claude stream transformer as an
// explicit state machine ... rather than as nested control flow").
type streamState int

const (
	stateStart streamState = iota
	stateBetweenBlocks
	stateInsideBlock
	stateClosing
	stateDone
)

// claudeDecodeStream drains a Gemini SSE stream and re-emits it framed as
// the Claude messages streaming protocol (spec §4.3 "Claude transformer.
// Decode (streaming)").
type claudeDecodeStream struct {
	ctx             context.Context
	upstream        streams.Stream[*httpx.StreamEvent]
	clientModel     string
	requestID       string
	thinkingEnabled bool

	state      streamState
	blockIndex int
	blockType  processors.ClaudeBlockType
	blockOpen  bool
	hasToolUse bool
	stopReason string
	outTokens  int64

	pending []*httpx.StreamEvent
	current *httpx.StreamEvent
	err     error
}

// DecodeStream builds the Claude-framed output stream from the raw upstream
// Gemini SSE stream.
func DecodeStream(ctx context.Context, upstream streams.Stream[*httpx.StreamEvent], clientModel, requestID string, thinkingEnabled bool) streams.Stream[*httpx.StreamEvent] {
	return &claudeDecodeStream{
		ctx:             ctx,
		upstream:        upstream,
		clientModel:     clientModel,
		requestID:       requestID,
		thinkingEnabled: thinkingEnabled,
		state:           stateStart,
	}
}

func (s *claudeDecodeStream) Next() bool {
	// Pending frames queued by a fill() call that also advanced the state
	// to stateDone (closing, or a mid-stream error) must still drain before
	// the done check below takes effect.
	if len(s.pending) > 0 {
		s.current = s.pending[0]
		s.pending = s.pending[1:]

		return true
	}

	if s.err != nil || s.state == stateDone {
		return false
	}

	for {
		if s.fill() {
			if len(s.pending) > 0 {
				s.current = s.pending[0]
				s.pending = s.pending[1:]

				return true
			}

			continue
		}

		return false
	}
}

// fill advances the state machine by one upstream event (or, from the start
// state, synthesizes the opening frames without consuming one), queuing zero
// or more output events into s.pending. Returns false once the stream is
// fully drained or errored.
func (s *claudeDecodeStream) fill() bool {
	switch s.state {
	case stateStart:
		s.queue(processors.MessageStart("msg_"+s.requestID, s.clientModel))
		s.queue(processors.Ping())
		s.state = stateBetweenBlocks

		return true

	case stateClosing:
		s.queue(processors.MessageDelta(s.stopReason, s.outTokens))
		s.queue(processors.MessageStop())
		s.state = stateDone

		return true

	case stateDone:
		return false
	}

	if !s.upstream.Next() {
		if err := s.upstream.Err(); err != nil {
			s.err = err
			return false
		}

		if s.blockOpen {
			s.queue(processors.ContentBlockStop(s.blockIndex))
			s.blockOpen = false
		}

		if s.stopReason == "" {
			s.stopReason = "end_turn"
		}

		s.state = stateClosing

		return true
	}

	event := s.upstream.Current()
	if event == nil || len(event.Data) == 0 {
		return true
	}

	var resp gemini.GenerateContentResponse
	if err := json.Unmarshal(event.Data, &resp); err != nil {
		log.Warn(s.ctx, "claude stream: skipping malformed upstream frame", log.Cause(err))
		return true
	}

	if len(resp.Candidates) == 0 {
		if msg, ok := upstreamErrorMessage(event.Data); ok {
			s.queueError(msg)
			s.state = stateDone

			return true
		}
	}

	s.consume(&resp)

	return true
}

// upstreamErrorMessage reports whether a candidate-less frame is actually
// Gemini's error envelope ({"error":{"code","message","status"}}) rather
// than an empty/heartbeat frame, so it can be surfaced as an error-typed
// frame instead of silently dropped.
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

// queueError emits Claude's `event: error` frame and closes any open block
// cleanly first, since the stream ends right after (spec: "the stream is
// then closed cleanly").
func (s *claudeDecodeStream) queueError(message string) {
	if s.blockOpen {
		s.queue(processors.ContentBlockStop(s.blockIndex))
		s.blockOpen = false
	}

	body, err := json.Marshal(gatewayerr.ClaudeErrorBody{
		Type: "error",
		Error: gatewayerr.ClaudeErrorDetail{
			Type:    "api_error",
			Message: message,
		},
	})
	if err != nil {
		s.err = err
		return
	}

	s.pending = append(s.pending, &httpx.StreamEvent{Type: "error", Data: body})
}

func (s *claudeDecodeStream) consume(resp *gemini.GenerateContentResponse) {
	if len(resp.Candidates) == 0 {
		return
	}

	candidate := resp.Candidates[0]

	if resp.UsageMetadata != nil {
		s.outTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			s.consumePart(part)
		}
	}

	if candidate.FinishReason != "" {
		if s.hasToolUse {
			s.stopReason = "tool_use"
		} else {
			s.stopReason = mapStopReason(candidate.FinishReason)
		}
	}
}

func (s *claudeDecodeStream) consumePart(part *gemini.Part) {
	switch {
	case part.FunctionCall != nil:
		s.hasToolUse = true

		args, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			args = []byte("{}")
		}

		s.openToolBlock(part.FunctionCall.Name)
		s.queue(processors.ContentBlockDelta(s.blockIndex, processors.ClaudeBlockToolUse, "", string(args)))

	case part.Thought:
		if !s.thinkingEnabled {
			return
		}

		s.openBlock(processors.ClaudeBlockThinking, "", "")
		s.queue(processors.ContentBlockDelta(s.blockIndex, processors.ClaudeBlockThinking, part.Text, ""))

	case part.Text != "":
		s.openBlock(processors.ClaudeBlockText, "", "")
		s.queue(processors.ContentBlockDelta(s.blockIndex, processors.ClaudeBlockText, part.Text, ""))
	}
}

// openBlock closes any block of a different kind and opens a fresh one,
// leaving a same-kind open block untouched so consecutive deltas of the
// same type share one content_block_start/stop pair.
func (s *claudeDecodeStream) openBlock(kind processors.ClaudeBlockType, toolName, toolID string) {
	if s.blockOpen && s.blockType == kind {
		return
	}

	if s.blockOpen {
		s.queue(processors.ContentBlockStop(s.blockIndex))
		s.blockIndex++
	}

	s.blockType = kind
	s.blockOpen = true
	s.queue(processors.ContentBlockStart(s.blockIndex, kind, toolName, toolID))
}

// openToolBlock always starts a fresh tool_use block, even immediately after
// another tool_use block: each FunctionCall part is a single complete call
// (mirrors the unary decoder's decodeBlocks, which appends one ContentBlock
// per FunctionCall part), never a continuation of the previous one's args.
func (s *claudeDecodeStream) openToolBlock(toolName string) {
	if s.blockOpen {
		s.queue(processors.ContentBlockStop(s.blockIndex))
		s.blockIndex++
	}

	s.blockType = processors.ClaudeBlockToolUse
	s.blockOpen = true
	s.queue(processors.ContentBlockStart(s.blockIndex, processors.ClaudeBlockToolUse, toolName, toolUseID(s.requestID, s.blockIndex)))
}

func (s *claudeDecodeStream) queue(event processors.ClaudeEvent) {
	data, err := event.Marshal()
	if err != nil {
		s.err = err
		return
	}

	s.pending = append(s.pending, &httpx.StreamEvent{Type: event.Type, Data: data})
}

func (s *claudeDecodeStream) Current() *httpx.StreamEvent { return s.current }

func (s *claudeDecodeStream) Err() error { return s.err }

func (s *claudeDecodeStream) Close() error { return s.upstream.Close() }

func toolUseID(requestID string, index int) string {
	return "toolu_" + requestID + "_" + strconv.Itoa(index)
}
