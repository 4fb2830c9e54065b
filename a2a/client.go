package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/metrics"
)

const (
	tracerName   = "github.com/hupe1980/predator/a2a"
	maxErrorBody = 512
)

// Remote call outcomes recorded in metrics.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeProtocol    = "protocol_error"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient performs the requests. Defaults to a client without timeout;
	// Timeout bounds every attempt instead.
	HTTPClient *http.Client
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxAttempts bounds the tries per call, first attempt included.
	MaxAttempts uint
	// InitialBackoff and MaxBackoff shape the exponential wait between tries.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// CacheSize is the number of descriptors kept.
	CacheSize int

	Logger  logging.Logger
	Metrics metrics.Recorder
}

// remoteCallLogger is implemented by logging.TaskLogger.
type remoteCallLogger interface {
	LogRemoteCall(agent string, attempts int, dur time.Duration, err error)
}

// Client talks to remote peers. Descriptors are cached per base URL and
// concurrent discoveries of the same peer share one fetch. A Client is safe
// for concurrent use.
type Client struct {
	opts   ClientOptions
	cache  *lru.Cache[string, core.AgentDescriptor]
	group  singleflight.Group
	tracer trace.Tracer
}

// NewClient creates a Client.
func NewClient(optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{
		HTTPClient:     &http.Client{},
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		CacheSize:      64,
		Logger:         logging.NoOpLogger{},
		Metrics:        metrics.Nop(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	opts.Metrics = metrics.OrNop(opts.Metrics)

	cache, err := lru.New[string, core.AgentDescriptor](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("descriptor cache: %w", err)
	}

	return &Client{opts: opts, cache: cache, tracer: otel.Tracer(tracerName)}, nil
}

// Discover returns the descriptor published under baseURL.
func (c *Client) Discover(ctx context.Context, baseURL string) (core.AgentDescriptor, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if d, ok := c.cache.Get(baseURL); ok {
		return d, nil
	}

	// The shared fetch must outlive any single waiter; retries and the
	// per-attempt timeout still bound it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(baseURL, func() (any, error) {
		return c.fetchDescriptor(fetchCtx, baseURL)
	})

	select {
	case <-ctx.Done():
		return core.AgentDescriptor{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.AgentDescriptor{}, res.Err
		}
		if res.Shared {
			c.opts.Logger.Debug("a2a.client.discover.shared", "base_url", baseURL)
		}
		return res.Val.(core.AgentDescriptor), nil
	}
}

// Forget drops the cached descriptor of baseURL.
func (c *Client) Forget(baseURL string) {
	c.cache.Remove(strings.TrimRight(baseURL, "/"))
}

func (c *Client) fetchDescriptor(ctx context.Context, baseURL string) (core.AgentDescriptor, error) {
	ctx, span := c.tracer.Start(ctx, "a2a.discover", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("a2a.base_url", baseURL)))
	defer span.End()

	url := baseURL + DescriptorPath
	start := time.Now()
	desc, attempts, err := retry(ctx, c, url, func(ctx context.Context) (core.AgentDescriptor, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return core.AgentDescriptor{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		var d core.AgentDescriptor
		if err := c.roundTrip(req, &d); err != nil {
			return core.AgentDescriptor{}, err
		}
		if err := validateDescriptor(d); err != nil {
			return core.AgentDescriptor{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return d, nil
	})
	c.observe(span, baseURL, attempts, time.Since(start), err)
	if err != nil {
		return core.AgentDescriptor{}, &RemoteError{Agent: baseURL, Op: "discover", StatusCode: statusCode(err), Attempts: attempts, Err: err}
	}

	c.cache.Add(baseURL, desc)
	c.opts.Logger.Info("a2a.client.discovered", "base_url", baseURL, "agent", desc.Name, "url", desc.URL)

	return desc, nil
}

// Invoke sends req to the peer described by desc and returns its answer.
func (c *Client) Invoke(ctx context.Context, desc core.AgentDescriptor, req InvokeRequest) (InvokeResponse, error) {
	if err := req.Validate(); err != nil {
		return InvokeResponse{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	ctx, span := c.tracer.Start(ctx, "a2a.invoke", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("a2a.agent", desc.Name),
		attribute.String("a2a.correlation_id", req.CorrelationID),
		attribute.Bool("a2a.decision", req.Decision != nil),
	))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return InvokeResponse{}, fmt.Errorf("encode invoke request: %w", err)
	}

	start := time.Now()
	resp, attempts, err := retry(ctx, c, desc.Name, func(ctx context.Context) (InvokeResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.URL, bytes.NewReader(body))
		if err != nil {
			return InvokeResponse{}, backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		var out InvokeResponse
		if err := c.roundTrip(httpReq, &out); err != nil {
			return InvokeResponse{}, err
		}
		if err := out.Validate(); err != nil {
			return InvokeResponse{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if out.CorrelationID != req.CorrelationID {
			return InvokeResponse{}, fmt.Errorf("%w: correlation id %q does not match %q", ErrProtocol, out.CorrelationID, req.CorrelationID)
		}
		return out, nil
	})
	c.observe(span, desc.Name, attempts, time.Since(start), err)
	if err != nil {
		return InvokeResponse{}, &RemoteError{Agent: desc.Name, Op: "invoke", StatusCode: statusCode(err), Attempts: attempts, Err: err}
	}

	span.SetAttributes(attribute.String("a2a.state", string(resp.State)))

	return resp, nil
}

// roundTrip performs req and decodes a 2xx JSON body into out. Only 4xx
// answers are permanent; a malformed body is retried like a transport fault.
func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
		if errors.Is(se, ErrProtocol) {
			return backoff.Permanent(se)
		}
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrProtocol, err)
	}

	return nil
}

func (c *Client) observe(span trace.Span, agent string, attempts int, dur time.Duration, err error) {
	span.SetAttributes(attribute.Int("a2a.attempts", attempts))

	outcome := OutcomeOK
	switch {
	case errors.Is(err, ErrProtocol):
		outcome = OutcomeProtocol
	case err != nil:
		outcome = OutcomeUnavailable
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.opts.Metrics.RemoteCall(agent, outcome, dur)

	if rl, ok := c.opts.Logger.(remoteCallLogger); ok {
		rl.LogRemoteCall(agent, attempts, dur, err)
	} else if err != nil {
		c.opts.Logger.Warn("a2a.call.failed", "agent", agent, "attempts", attempts, "error", err.Error())
	}
}

// retry runs call with a per-attempt timeout and exponential backoff
// between attempts.
func retry[T any](ctx context.Context, c *Client, target string, call func(context.Context) (T, error)) (T, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff

	attempts := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		if c.opts.Timeout <= 0 {
			return call(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		return call(attemptCtx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.opts.Logger.Warn("a2a.client.retry", "target", target, "attempt", attempts, "wait", wait, "error", err.Error())
		}),
	)

	return v, attempts, err
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) func(o *ClientOptions) {
	return func(o *ClientOptions) {
		if hc != nil {
			o.HTTPClient = hc
		}
	}
}

// WithRetry sets attempt count and backoff bounds.
func WithRetry(maxAttempts uint, initial, max time.Duration) func(o *ClientOptions) {
	return func(o *ClientOptions) {
		o.MaxAttempts = maxAttempts
		o.InitialBackoff = initial
		o.MaxBackoff = max
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) func(o *ClientOptions) {
	return func(o *ClientOptions) { o.Timeout = d }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logging.Logger) func(o *ClientOptions) {
	return func(o *ClientOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClientMetrics sets the metrics recorder.
func WithClientMetrics(m metrics.Recorder) func(o *ClientOptions) {
	return func(o *ClientOptions) { o.Metrics = m }
}
