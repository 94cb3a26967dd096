package httpx

import (
	"context"
	"errors"
	"io"

	"github.com/tmaxmax/go-sse"

	"github.com/relaymesh/geminigate/internal/streams"
)

// maxSSEEventSize caps a single frame; Gemini responses can carry large
// inline-data parts (e.g. generated images) in one event.
const maxSSEEventSize = 32 * 1024 * 1024

// sseStream adapts a go-sse Stream to streams.Stream[*StreamEvent].
//
// Not concurrency-safe: Next/Close must not be called from multiple
// goroutines, matching the pull-style contract of streams.Stream.
type sseStream struct {
	ctx       context.Context
	sseStream *sse.Stream
	current   *StreamEvent
	err       error
	closed    bool
	closeErr  error
}

// DecodeSSE wraps an open response body as a pull-style stream of parsed SSE
// frames. The caller must Close the returned stream exactly once; it closes
// the underlying body.
func DecodeSSE(ctx context.Context, body io.ReadCloser) streams.Stream[*StreamEvent] {
	return &sseStream{
		ctx: ctx,
		sseStream: sse.NewStreamWithConfig(body, &sse.StreamConfig{
			MaxEventSize: maxSSEEventSize,
		}),
	}
}

func (s *sseStream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	event, err := s.sseStream.Recv()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}

		_ = s.Close()

		return false
	}

	s.current = &StreamEvent{
		Type:        event.Type,
		Data:        []byte(event.Data),
		LastEventID: event.LastEventID,
	}

	return true
}

func (s *sseStream) Current() *StreamEvent { return s.current }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error {
	if s.closed {
		return s.closeErr
	}

	s.closed = true
	if s.sseStream != nil {
		s.closeErr = s.sseStream.Close()
	}

	return s.closeErr
}
