// Package httpx implements the single-request engine under the NVLP client:
// one network call with timeout, header injection, failure classification,
// and the silent 401 refresh-and-retry.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thelarryrutledge/nvlp-go/internal/logging"
)

// DefaultTimeout applies when neither the engine nor the request sets one.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies bearer credentials for outgoing requests.
//
// Token returns a currently valid access token, refreshing first when the
// cached one is inside the expiry skew window. Refresh forces a refresh and
// returns the new access token; it is invoked by the engine after a 401.
// Both may return an empty token for anonymous sessions.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Request describes a single call. Body is already serialized; Headers are
// merged over the engine's static headers.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string

	// Timeout overrides the engine default for this call only.
	Timeout time.Duration

	// NoAuth skips bearer-token injection and the 401 refresh-retry.
	// Used for the identity endpoints themselves.
	NoAuth bool
}

// Response is a successful (2xx) outcome with the body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Options configures an Engine.
type Options struct {
	// HTTPClient defaults to a fresh *http.Client. The client's own Timeout
	// is left at zero; deadlines are enforced per call via context.
	HTTPClient *http.Client

	// Timeout is the default per-call deadline (DefaultTimeout when zero).
	Timeout time.Duration

	// Headers are attached to every request (apikey, device id).
	Headers map[string]string

	// Tokens, when set, enables Authorization injection and the single
	// silent refresh-and-retry on 401.
	Tokens TokenSource

	// OnInvalidated fires when a request still fails authentication after
	// the refresh retry. De-duplication across concurrent failures is the
	// caller's business.
	OnInvalidated func()

	Logger logging.Logger
}

// Engine performs individual HTTP calls. It never retries beyond the single
// 401-triggered attempt; broader retry belongs to the retry package.
type Engine struct {
	client        *http.Client
	timeout       time.Duration
	headers       map[string]string
	tokens        TokenSource
	onInvalidated func()
	log           logging.Logger
}

// NewEngine constructs an Engine from opts.
func NewEngine(opts Options) *Engine {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{
		client:        client,
		timeout:       timeout,
		headers:       opts.Headers,
		tokens:        opts.Tokens,
		onInvalidated: opts.OnInvalidated,
		log:           log,
	}
}

// Do executes req and classifies the outcome.
//
// Error taxonomy: *TimeoutError when the deadline elapsed, *NetworkError when
// no response was received, *HTTPError for a non-2xx response. A 401 with a
// configured TokenSource triggers exactly one silent refresh-and-retry; a 401
// on the retried call (or a failed refresh) becomes *SessionInvalidatedError
// and fires the OnInvalidated hook.
func (e *Engine) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var token string
	if e.authEnabled(req) {
		t, err := e.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	resp, err := e.attempt(ctx, req, token)
	if err == nil {
		return resp, nil
	}

	// An empty token means an anonymous (apikey-only) call: there is no
	// session to refresh, so a 401 stays a plain HTTP error.
	if StatusOf(err) != http.StatusUnauthorized || !e.authEnabled(req) || token == "" {
		return nil, err
	}

	e.log.Debug(ctx, "unauthorized response, refreshing session", "method", req.Method, "url", req.URL)

	newToken, rerr := e.tokens.Refresh(ctx)
	if rerr != nil {
		e.invalidated()
		return nil, &SessionInvalidatedError{Err: rerr}
	}

	resp, err = e.attempt(ctx, req, newToken)
	if err == nil {
		return resp, nil
	}
	if StatusOf(err) == http.StatusUnauthorized {
		e.invalidated()
		return nil, &SessionInvalidatedError{Err: err}
	}
	return nil, err
}

func (e *Engine) authEnabled(req Request) bool {
	return e.tokens != nil && !req.NoAuth
}

func (e *Engine) invalidated() {
	if e.onInvalidated != nil {
		e.onInvalidated()
	}
}

// attempt performs exactly one wire call.
func (e *Engine) attempt(ctx context.Context, req Request, token string) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range e.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	e.log.Debug(ctx, "request", "method", req.Method, "url", req.URL)

	res, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, classify(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{Status: res.StatusCode, Body: data}
	}

	return &Response{Status: res.StatusCode, Header: res.Header, Body: data}, nil
}

// classify maps a transport-level failure onto the error taxonomy. The cause
// stays reachable through Unwrap, so errors.Is(err, context.Canceled) and
// friends keep working.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}
