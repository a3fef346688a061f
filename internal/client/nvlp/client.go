// Package nvlp is the unified client façade: one entry point routing table
// queries to the PostgREST transport and business-logic calls to the edge
// functions, with shared credentials, retry, and the offline queue behind it.
package nvlp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/thelarryrutledge/nvlp-go/internal/client/auth"
	"github.com/thelarryrutledge/nvlp-go/internal/client/config"
	"github.com/thelarryrutledge/nvlp-go/internal/client/device"
	"github.com/thelarryrutledge/nvlp-go/internal/client/httpx"
	"github.com/thelarryrutledge/nvlp-go/internal/client/postgrest"
	"github.com/thelarryrutledge/nvlp-go/internal/client/queue"
	"github.com/thelarryrutledge/nvlp-go/internal/client/queue/store"
	"github.com/thelarryrutledge/nvlp-go/internal/client/retry"
	"github.com/thelarryrutledge/nvlp-go/internal/events"
	"github.com/thelarryrutledge/nvlp-go/internal/logging"
)

// Dependencies captures optional external handles for constructing a Client.
// Zero values select the defaults described on each field.
type Dependencies struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// HTTPClient is shared by all transports; defaults to a fresh client.
	HTTPClient *http.Client

	// QueueStore overrides the backend selected by the configuration.
	QueueStore store.Store

	// DeadLetter receives queued requests that failed terminally on replay.
	DeadLetter func(req store.Request, err error)

	// DeviceID supplies an externally managed device identifier. When empty
	// the identifier is loaded from (or created at) cfg.DeviceIDFile.
	DeviceID string
}

// Client is the transport façade. One Client owns one credential cell, one
// offline queue, and one session-invalidation channel.
type Client struct {
	cfg *config.Config
	log logging.Logger

	tokens *auth.Manager

	rest     *httpx.Engine
	fns      *httpx.Engine
	identity *httpx.Engine

	retryPolicy retry.Policy
	queue       *queue.Manager

	invalidated     *events.Bus[InvalidatedEvent]
	invalidatedOnce sync.Mutex
	invalidatedSet  bool

	deviceMu sync.RWMutex
	deviceID string
}

// InvalidatedEvent is delivered to session-invalidation listeners.
type InvalidatedEvent struct {
	// UserID identifies the principal whose session was revoked; empty when
	// the session was already gone.
	UserID string
}

// New wires a Client from configuration and optional dependencies.
func New(cfg *config.Config, deps Dependencies) (*Client, error) {
	if cfg.RestURL == "" {
		return nil, fmt.Errorf("rest base URL required")
	}

	log := deps.Logger
	if log == nil {
		log = logging.NewNop()
	}

	deviceID := deps.DeviceID
	if deviceID == "" {
		id, err := device.LoadOrCreate(cfg.DeviceIDFile)
		if err != nil {
			return nil, fmt.Errorf("device id: %w", err)
		}
		deviceID = id
	}

	c := &Client{
		cfg:         cfg,
		log:         log,
		invalidated: events.New[InvalidatedEvent](),
		deviceID:    deviceID,
	}

	staticHeaders := map[string]string{}
	if cfg.APIKey != "" {
		staticHeaders["apikey"] = cfg.APIKey
	}

	// Identity endpoints get a bare engine: no bearer injection, no 401
	// refresh loop. Refreshing a refresh token makes no sense.
	c.identity = httpx.NewEngine(httpx.Options{
		HTTPClient: deps.HTTPClient,
		Timeout:    cfg.RestTimeout,
		Headers:    staticHeaders,
		Logger:     log.With("transport", "identity"),
	})

	c.tokens = auth.NewManager(
		&identityRefresher{engine: c.identity, base: cfg.AuthURL},
		cfg.TokenSkew,
		log,
	)

	source := tokenSource{c: c}
	c.rest = httpx.NewEngine(httpx.Options{
		HTTPClient:    deps.HTTPClient,
		Timeout:       cfg.RestTimeout,
		Headers:       staticHeaders,
		Tokens:        source,
		OnInvalidated: c.notifyInvalidated,
		Logger:        log.With("transport", "rest"),
	})
	c.fns = httpx.NewEngine(httpx.Options{
		HTTPClient:    deps.HTTPClient,
		Timeout:       cfg.FunctionsTimeout,
		Headers:       staticHeaders,
		Tokens:        source,
		OnInvalidated: c.notifyInvalidated,
		Logger:        log.With("transport", "functions"),
	})

	c.retryPolicy = retryPolicyFromConfig(cfg)

	if cfg.QueueEnabled {
		st := deps.QueueStore
		if st == nil {
			var err error
			st, err = store.New(store.Config{
				Driver: cfg.QueueDriver,
				Path:   cfg.QueuePath,
				Redis:  redisConfigFromConfig(cfg),
			})
			if err != nil {
				return nil, fmt.Errorf("queue store: %w", err)
			}
		}
		overflow := queue.RejectNew
		if cfg.QueueEvictOldest {
			overflow = queue.EvictOldest
		}
		c.queue = queue.NewManager(queue.Options{
			Store:      st,
			Sender:     c.replay,
			MaxSize:    cfg.QueueMaxSize,
			Overflow:   overflow,
			DeadLetter: deps.DeadLetter,
			Logger:     log,
		})
	}

	return c, nil
}

func retryPolicyFromConfig(cfg *config.Config) retry.Policy {
	p := retry.Default()
	if cfg.RetryMaxAttempts > 0 {
		p.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		p.BaseDelay = cfg.RetryBaseDelay
	}
	switch cfg.RetryStrategy {
	case "constant":
		p.Strategy = retry.Constant
	case "linear":
		p.Strategy = retry.Linear
	default:
		p.Strategy = retry.Exponential
	}
	return p
}

func redisConfigFromConfig(cfg *config.Config) *store.RedisConfig {
	if cfg.QueueRedisAddr == "" {
		return nil
	}
	return &store.RedisConfig{Addr: cfg.QueueRedisAddr}
}

// From starts a fluent table query. The builder is copy-on-write and may be
// shared across goroutines.
func (c *Client) From(table string) *postgrest.Builder {
	return postgrest.NewBuilder(c.restExec, table)
}

// Invoke POSTs payload to the named edge function and unmarshals the JSON
// response into out (pass nil to discard it).
func (c *Client) Invoke(ctx context.Context, name string, payload any, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = b
	}
	return c.invoke(ctx, http.MethodPost, name, body, out)
}

// InvokeGet calls the named edge function with GET.
func (c *Client) InvokeGet(ctx context.Context, name string, out any) error {
	return c.invoke(ctx, http.MethodGet, name, nil, out)
}

func (c *Client) invoke(ctx context.Context, method, name string, body []byte, out any) error {
	if c.cfg.FunctionsURL == "" {
		return fmt.Errorf("functions base URL not configured")
	}
	url := strings.TrimRight(c.cfg.FunctionsURL, "/") + "/" + strings.TrimLeft(name, "/")

	resp, err := c.do(ctx, c.fns, httpx.Request{Method: method, URL: url, Body: body})
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// restExec adapts the engine path to the query builder's Executor contract.
func (c *Client) restExec(ctx context.Context, req postgrest.Request) ([]byte, error) {
	url := strings.TrimRight(c.cfg.RestURL, "/") + req.Path
	if len(req.Query) > 0 {
		url += "?" + req.Query.Encode()
	}

	resp, err := c.do(ctx, c.rest, httpx.Request{
		Method:  req.Method,
		URL:     url,
		Body:    req.Body,
		Headers: req.Headers,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do runs one logical request: retry loop around the engine, then offline
// capture. Queue-eligible failures (network, timeout) of any request are
// enqueued and surfaced as *QueuedError; everything else propagates as-is.
func (c *Client) do(ctx context.Context, engine *httpx.Engine, req httpx.Request) (*httpx.Response, error) {
	req.Headers = c.withDeviceHeader(req.Headers)

	resp, err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) (*httpx.Response, error) {
		return engine.Do(ctx, req)
	})
	if err == nil {
		return resp, nil
	}

	if c.queue == nil || !httpx.IsOffline(err) {
		return nil, err
	}

	entry, qerr := c.queue.Enqueue(ctx, store.Request{
		Method:  req.Method,
		Path:    req.URL,
		Body:    req.Body,
		Headers: req.Headers,
	})
	if qerr != nil {
		// Capacity (or store) trouble: the caller sees why the request was
		// not captured; the transport failure goes to the log.
		c.log.Warn(ctx, "offline capture failed", "error", qerr, "cause", err)
		return nil, qerr
	}

	return nil, &QueuedError{ID: entry.ID, Err: err}
}

// replay pushes one stored entry back through its engine. The queue manager
// owns retry counting; a fresh offline failure here must not re-enqueue.
func (c *Client) replay(ctx context.Context, entry store.Request) error {
	engine := c.rest
	if c.cfg.FunctionsURL != "" && strings.HasPrefix(entry.Path, c.cfg.FunctionsURL) {
		engine = c.fns
	}
	_, err := engine.Do(ctx, httpx.Request{
		Method:  entry.Method,
		URL:     entry.Path,
		Body:    entry.Body,
		Headers: entry.Headers,
	})
	return err
}

// ProcessQueue drains the offline queue; typically hooked to a reconnect
// signal. Returns the number of entries replayed successfully.
func (c *Client) ProcessQueue(ctx context.Context) (int, error) {
	if c.queue == nil {
		return 0, nil
	}
	return c.queue.Process(ctx)
}

// QueueSize reports the number of pending offline entries.
func (c *Client) QueueSize(ctx context.Context) (int, error) {
	if c.queue == nil {
		return 0, nil
	}
	return c.queue.Size(ctx)
}

// ClearQueue drops every pending offline entry.
func (c *Client) ClearQueue(ctx context.Context) error {
	if c.queue == nil {
		return nil
	}
	return c.queue.Clear(ctx)
}

// DeviceID returns the identifier attached to outgoing requests.
func (c *Client) DeviceID() string {
	c.deviceMu.RLock()
	defer c.deviceMu.RUnlock()
	return c.deviceID
}

// RotateDeviceID generates, persists, and starts using a fresh identifier.
func (c *Client) RotateDeviceID() (string, error) {
	id, err := device.Rotate(c.cfg.DeviceIDFile)
	if err != nil {
		return "", err
	}
	c.deviceMu.Lock()
	c.deviceID = id
	c.deviceMu.Unlock()
	return id, nil
}

func (c *Client) withDeviceHeader(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	out[device.HeaderName] = c.DeviceID()
	return out
}
