// Package remote provides the outbound HTTP plumbing shared by the Azure DevOps
// and ProductBoard adapters: authentication, per-partner rate limiting, circuit
// breaking, tracing and typed errors. Calls are never retried here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/AlieInmar1/pbtoado-sub002/internal/remote"

// Defaults for outbound calls.
const (
	DefaultTimeout          = 30 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	maxErrorBody            = 4096
)

// Auth decorates an outgoing request with credentials.
type Auth func(r *http.Request)

// BasicAuth authenticates with HTTP basic credentials. Azure DevOps PATs use an empty user.
func BasicAuth(user, password string) Auth {
	return func(r *http.Request) { r.SetBasicAuth(user, password) }
}

// BearerAuth authenticates with a bearer token.
func BearerAuth(token string) Auth {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// Options configures a Client.
type Options struct {
	System            string // "ado" or "productboard"; used in errors, spans and breaker names
	BaseURL           string
	Auth              Auth
	Headers           map[string]string
	RequestsPerSecond float64 // <= 0 disables limiting
	Burst             int
	Timeout           time.Duration
	BreakerThreshold  uint32        // consecutive 5xx/transport failures before opening (default 5)
	BreakerCooldown   time.Duration // open duration before a half-open trial request (default 30s)
	HTTPClient        *http.Client
}

// Request describes one outbound call. Path may be absolute, which is how
// pagination links returned by a partner are followed.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any // []byte is sent as is, anything else is JSON encoded
	ContentType string
}

// Client issues authenticated calls against one partner system.
type Client struct {
	system  string
	baseURL string
	auth    Auth
	headers map[string]string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// New creates a Client from options.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = defaultBreakerThreshold
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	meter := otel.Meter(instrumentationName)
	latency, _ := meter.Float64Histogram("remote.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of outbound partner API calls"))

	return &Client{
		system:  opts.System,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		auth:    opts.Auth,
		headers: opts.Headers,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    opts.System,
			Timeout: cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !trips(err)
			},
		}),
		tracer:  otel.Tracer(instrumentationName),
		latency: latency,
	}
}

// System returns the partner name this client talks to.
func (c *Client) System() string { return c.system }

// BreakerState reports the circuit breaker state as a string.
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// Do performs the request and decodes a JSON response into out when out is non-nil.
// Any non-2xx response is returned as *RemoteAPIError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	raw, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decoding %s %s response: %w", c.system, req.Method, req.Path, err)
	}
	return nil
}

// DoRaw performs the request and returns the raw response body.
func (c *Client) DoRaw(ctx context.Context, req Request) ([]byte, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", c.system, err)
	}

	ctx, span := c.tracer.Start(ctx, c.system+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("remote.system", c.system),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		))
	defer span.End()

	start := time.Now()
	status := 0
	res, err := c.breaker.Execute(func() (interface{}, error) {
		body, code, err := c.send(ctx, req, target)
		status = code
		return body, err
	})
	c.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("remote.system", c.system),
		attribute.String("http.request.method", req.Method),
		attribute.Int("http.response.status_code", status),
	))
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s circuit breaker: %w", c.system, err)
		}
		return nil, err
	}
	body, _ := res.([]byte)
	return body, nil
}

func (c *Client) send(ctx context.Context, req Request, target string) ([]byte, int, error) {
	var reader io.Reader
	contentType := req.ContentType
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: encoding request body: %w", c.system, err)
		}
		reader = bytes.NewReader(data)
	}
	if reader != nil && contentType == "" {
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: creating request: %w", c.system, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if c.auth != nil {
		c.auth(httpReq)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, &TransportError{System: c.system, Method: req.Method, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{System: c.system, Method: req.Method, URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &RemoteAPIError{
			System: c.system,
			Method: req.Method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   truncate(string(body), maxErrorBody),
		}
	}
	return body, resp.StatusCode, nil
}

func (c *Client) resolve(req Request) (string, error) {
	raw := req.Path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: invalid request URL %q: %w", c.system, raw, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = encodeQuery(q)
	}
	return u.String(), nil
}

// encodeQuery keeps "$" unescaped in keys; Azure DevOps accepts both forms but
// "$expand" reads better in logs and traces.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), "%24", "$")
}

// truncate caps s at n bytes without splitting a rune. Invalid UTF-8 from a
// partner body is replaced so the text is safe to store in a TEXT column.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "...(truncated)"
}

// Chunk splits items into consecutive slices of at most size elements,
// preserving order. A non-positive size yields a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
