package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/streams"
)

// writeSSEStream drains stream and writes each event as
// "event: <type>\ndata: <payload>\n\n" (the event line is left out when the
// event has no type), matching the framing every dialect
// (including the native passthrough, which forwards upstream's own SSE
// frames unchanged) expects a client to parse. Always closes stream before
// returning.
func writeSSEStream(c *gin.Context, stream streams.Stream[*httpx.StreamEvent]) {
	ctx := c.Request.Context()

	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn(ctx, "error closing stream", log.Cause(err))
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Writer.CloseNotify()

	for {
		select {
		case <-clientGone:
			log.Warn(ctx, "client disconnected, stopping stream")
			return
		case <-ctx.Done():
			log.Warn(ctx, "context done, stopping stream")
			return
		default:
		}

		if !stream.Next() {
			if err := stream.Err(); err != nil {
				log.Error(ctx, "error reading stream", log.Cause(err))
			}

			return
		}

		event := stream.Current()

		if event.Type != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event.Type)
		}

		fmt.Fprintf(c.Writer, "data: %s\n\n", event.Data)
		c.Writer.Flush()
	}
}
