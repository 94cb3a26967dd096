// Package native implements the pass-through Gemini dialect: the client
// already speaks the upstream wire format, so the transformer's job is
// limited to stripping routing fields the gateway itself consumes (spec
// §4.3 "Native transformer").
package native

import (
	"github.com/tidwall/sjson"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/streams"
)

// Encode strips `stream` and `model` (both of which the gateway already
// extracted during routing) from the validated body and passes everything
// else through unchanged.
func Encode(body []byte) ([]byte, error) {
	out, err := sjson.DeleteBytes(body, "stream")
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
	}

	out, err = sjson.DeleteBytes(out, "model")
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
	}

	return out, nil
}

// Decode passes a unary upstream response through verbatim; the client
// dialect already matches the upstream wire shape.
func Decode(upstreamBody []byte) []byte {
	return upstreamBody
}

// DecodeStream pipes the upstream SSE stream through unchanged; the server
// layer rewrites the response headers (content-type, cache-control) to the
// client-facing SSE contract, not the frame bodies themselves.
func DecodeStream(upstream streams.Stream[*httpx.StreamEvent]) streams.Stream[*httpx.StreamEvent] {
	return upstream
}
