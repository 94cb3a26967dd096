// Package adapter implements the per-dialect request template (spec §4.7):
// validate (upstream of this package) → encode → select key → call upstream
// → decode → record usage. Each dialect in internal/adapter/{openai,claude,
// native}.go wires its own transformer functions into the shared Deps/call
// helpers defined here.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/relaymesh/geminigate/internal/balancer"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/keyhash"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/reqctx"
	"github.com/relaymesh/geminigate/internal/storage"
	"github.com/relaymesh/geminigate/internal/streams"
)

// Deps are the collaborators every dialect adapter shares (spec §4.7 "all
// share the template").
type Deps struct {
	Balancer *balancer.Balancer
	Client   *httpx.Client
	Store    storage.RequestLogStore
	Config   *conf.Config
}

// selectKey hashes the caller's raw keys and asks the balancer for one
// (spec §4.7 step 3).
func selectKey(ctx context.Context, deps Deps, rawKeys []string, model string, estimatedTokens int64) (balancer.Selection, error) {
	candidates := make([]balancer.Candidate, len(rawKeys))
	for i, k := range rawKeys {
		candidates[i] = balancer.Candidate{Key: k, Hash: keyhash.Hash(k)}
	}

	sel, err := deps.Balancer.SelectKey(ctx, candidates, model, estimatedTokens)
	if err != nil {
		return balancer.Selection{}, err
	}

	if sel.Reason != "" {
		log.Warn(ctx, "balancer fell back to a degraded candidate", log.String("reason", sel.Reason), log.String("model", model))
	}

	return sel, nil
}

// upstreamURL builds the generateContent/streamGenerateContent URL (spec
// §4.7 step 4).
func upstreamURL(cfg *conf.Config, model string, streaming bool) string {
	if streaming {
		return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", cfg.Upstream.BaseURL, model)
	}

	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", cfg.Upstream.BaseURL, model)
}

// callUpstream issues the POST to Gemini with the chosen key attached (spec
// §4.7 step 4).
func callUpstream(ctx context.Context, deps Deps, requestID, model string, body []byte, streaming bool, apiKey string) (*httpx.Response, error) {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	if streaming {
		headers.Set("Accept", "text/event-stream")
	}

	req := httpx.FinalizeAuthHeaders(&httpx.Request{
		Method:    "POST",
		URL:       upstreamURL(deps.Config, model, streaming),
		Headers:   headers,
		Body:      body,
		RequestID: requestID,
		Auth: &httpx.AuthConfig{
			Type:      httpx.AuthTypeAPIKeyHeader,
			APIKey:    apiKey,
			HeaderKey: "x-goog-api-key",
		},
	})

	resp, err := deps.Client.Do(ctx, req)
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}

	return resp, nil
}

// classifyUpstreamErr normalizes an *httpx.Error (or a transient network
// failure) into the gateway's taxonomy (spec §4.8), inspecting Gemini's own
// error envelope when the upstream returned one.
func classifyUpstreamErr(err error) error {
	httpErr, ok := err.(*httpx.Error)
	if !ok {
		return gatewayerr.Wrap(gatewayerr.Timeout, err)
	}

	kind := kindForStatus(httpErr.StatusCode)
	message := httpErr.Error()

	var body gemini.ErrorResponse
	if json.Unmarshal(httpErr.Body, &body) == nil && body.Error.Message != "" {
		message = body.Error.Message
	}

	return gatewayerr.New(kind, message).WithStatus(httpErr.StatusCode)
}

func kindForStatus(status int) gatewayerr.Kind {
	switch status {
	case 400:
		return gatewayerr.Validation
	case 401:
		return gatewayerr.Authentication
	case 403:
		return gatewayerr.Permission
	case 404:
		return gatewayerr.NotFound
	case 408:
		return gatewayerr.Timeout
	case 429:
		return gatewayerr.RateLimit
	default:
		return gatewayerr.UpstreamAPI
	}
}

// decodeUnaryBody parses a buffered upstream response into the Gemini
// response envelope (spec §4.7 step 6, unary path).
func decodeUnaryBody(body []byte) (*gemini.GenerateContentResponse, error) {
	var resp gemini.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
	}

	return &resp, nil
}

// recordOutcome fires the post-call balancer notification without delaying
// the client response (spec §4.7 step 7); callers run it in a goroutine.
func recordOutcome(ctx context.Context, deps Deps, outcome balancer.Outcome) {
	if err := deps.Balancer.RecordOutcome(ctx, deps.Store, outcome); err != nil {
		log.Warn(ctx, "failed to record request outcome", log.Cause(err), log.String("key_hash", outcome.KeyHash))
	}
}

// estimatedTokensOrDefault applies the configured default when the dialect
// cannot estimate a token count up front (spec §4.6 "a fixed default...is
// used for admission").
func estimatedTokensOrDefault(estimated int64, cfg *conf.Config) int64 {
	if estimated > 0 {
		return estimated
	}

	return cfg.Quota.DefaultEstimatedTokens
}

// synthesizeErrorStream builds the single-frame SSE stream the adapter
// returns when the upstream call fails before the client ever saw a frame
// (spec §4.7 step 5: "synthesize a single-frame SSE stream carrying the
// error so the decoder path can format it in the client dialect uniformly").
// render produces the dialect-shaped error body and the SSE event type the
// dialect uses for error frames (e.g. Claude's "error" named event).
func synthesizeErrorStream(err error, render func(*gatewayerr.Error) (eventType string, data []byte)) streams.Stream[*httpx.StreamEvent] {
	gwErr, ok := gatewayerr.As(err)
	if !ok {
		gwErr = gatewayerr.Wrap(gatewayerr.Internal, err)
	}

	eventType, data := render(gwErr)

	return streams.SliceStream([]*httpx.StreamEvent{{Type: eventType, Data: data}})
}

// requestIDFrom reads the correlation id the server middleware stashed on
// ctx, falling back to an empty string (the dialect layer always sets one).
func requestIDFrom(ctx context.Context) string {
	id, _ := reqctx.RequestID(ctx)
	return id
}

// outcomeFor builds a balancer.Outcome from the values every dialect
// collects after an upstream call.
func outcomeFor(keyHash, model, dialect string, statusCode int, promptTokens, outputTokens int64, streaming bool, errMessage string) balancer.Outcome {
	return balancer.Outcome{
		KeyHash:      keyHash,
		Model:        model,
		Dialect:      dialect,
		StatusCode:   statusCode,
		PromptTokens: promptTokens,
		OutputTokens: outputTokens,
		Streaming:    streaming,
		ErrorMessage: errMessage,
	}
}

// usageObserver wraps the raw upstream SSE stream, transparently passing
// every frame through while peeking its usageMetadata so the adapter can
// record real token counts once the stream ends instead of the admission
// estimate (spec §4.6 "the actual token counts from usageMetadata correct
// the record after the call").
type usageObserver struct {
	inner                    streams.Stream[*httpx.StreamEvent]
	onDone                   func(promptTokens, outputTokens int64, streamErr error)
	promptTokens, outTokens  int64
	done                     bool
}

func observeUsage(inner streams.Stream[*httpx.StreamEvent], onDone func(promptTokens, outputTokens int64, streamErr error)) streams.Stream[*httpx.StreamEvent] {
	return &usageObserver{inner: inner, onDone: onDone}
}

func (u *usageObserver) Next() bool {
	if u.inner.Next() {
		u.observe(u.inner.Current())
		return true
	}

	u.finish(u.inner.Err())

	return false
}

func (u *usageObserver) observe(event *httpx.StreamEvent) {
	if event == nil || len(event.Data) == 0 {
		return
	}

	var resp gemini.GenerateContentResponse
	if json.Unmarshal(event.Data, &resp) != nil || resp.UsageMetadata == nil {
		return
	}

	u.promptTokens = resp.UsageMetadata.PromptTokenCount
	u.outTokens = resp.UsageMetadata.CandidatesTokenCount
}

func (u *usageObserver) finish(err error) {
	if u.done {
		return
	}

	u.done = true

	if u.onDone != nil {
		u.onDone(u.promptTokens, u.outTokens, err)
	}
}

func (u *usageObserver) Current() *httpx.StreamEvent { return u.inner.Current() }

func (u *usageObserver) Err() error { return u.inner.Err() }

func (u *usageObserver) Close() error {
	u.finish(nil)
	return u.inner.Close()
}
