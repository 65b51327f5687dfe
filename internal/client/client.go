// Package client is the HTTP adapter for the RecoRead backend.
//
// Every call attaches the bearer credential when one is stored. A 401
// clears the credential and fires the OnUnauthorized hook. Non-2xx
// responses become *errors.Error values carrying the backend's structured
// message, so errors.Message can pick the best text to show.
package client

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/recoread/recoread-client/internal/credential"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/id"
	"github.com/recoread/recoread-client/internal/ratelimit"
	"github.com/recoread/recoread-client/internal/validation"
)

const (
	defaultBaseURL         = "http://localhost:8080/api"
	defaultTimeout         = 30 * time.Second
	defaultSummaryCooldown = 10 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 8 << 20

	userAgent = "recoread-client/1.0"
)

// Options configures a Client.
type Options struct {
	BaseURL         string // default: http://localhost:8080/api
	Timeout         time.Duration
	HTTPClient      *http.Client // overrides Timeout when set
	Credentials     credential.Store
	Logger          *slog.Logger
	SummaryCooldown time.Duration // per-book; default 10s

	// OnUnauthorized runs after a 401 has cleared the credential.
	OnUnauthorized func()
}

// Client talks to the RecoRead backend.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	creds    credential.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	validate *validation.Validator

	// summaryLimiter enforces the per-book summary cooldown locally.
	summaryLimiter *ratelimit.KeyedRateLimiter

	mu             sync.RWMutex
	onUnauthorized func()
}

// New creates a client. It never dials; connection errors surface per call.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(cmp.Or(opts.BaseURL, defaultBaseURL), "/")
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", raw)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	creds := opts.Credentials
	if creds == nil {
		creds = credential.NewMemory()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cooldown := opts.SummaryCooldown
	if cooldown <= 0 {
		cooldown = defaultSummaryCooldown
	}

	return &Client{
		baseURL:        base,
		http:           httpClient,
		creds:          creds,
		logger:         logger,
		tracer:         otel.Tracer("github.com/recoread/recoread-client/internal/client"),
		validate:       validation.New(),
		summaryLimiter: ratelimit.NewEvery(cooldown, 1),
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.summaryLimiter.Stop()
}

// BaseURL is the backend root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetOnUnauthorized replaces the hook fired after a 401.
func (c *Client) SetOnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// SignedIn reports whether a credential is stored.
func (c *Client) SignedIn() bool {
	return c.creds.Token() != ""
}

// request describes one backend call.
type request struct {
	op     string // span and log name, e.g. "books.get"
	method string
	path   string
	query  url.Values
	body   any

	// signIn marks the auth endpoints. A 401 there is a rejected sign-in,
	// not an expired session.
	signIn bool
}

// response is what came back from a successful call.
type response struct {
	status int
	body   []byte
}

// empty reports whether the body carries no content: 204, nothing, null or {}.
func (r *response) empty() bool {
	if r.status == http.StatusNoContent {
		return true
	}
	trimmed := bytes.TrimSpace(r.body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	if trimmed[0] == '{' {
		var obj map[string]any
		return json.Unmarshal(trimmed, &obj) == nil && len(obj) == 0
	}
	return false
}

// decode unmarshals the body into out. An empty body leaves out untouched.
func (r *response) decode(out any) error {
	if r.empty() {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "decode response")
	}
	return nil
}

// do executes req and maps any failure to a domain error.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "recoread."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("url.path", req.path),
		),
	)
	defer span.End()

	resp, err := c.send(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domainerrors.Message(err))
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, span trace.Span) (*response, error) {
	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode request")
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create request")
	}

	requestID := id.RequestID()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.creds.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	span.SetAttributes(attribute.String("http.request.id", requestID))

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("backend request failed", "op", req.op, "request_id", requestID, "error", err)
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "")
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "read response")
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	c.logger.Debug("backend request",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", httpResp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &response{status: httpResp.StatusCode, body: data}, nil
	}

	apiErr := errorFromResponse(httpResp.StatusCode, data)
	if httpResp.StatusCode == http.StatusUnauthorized && !req.signIn {
		c.handleUnauthorized()
	}
	return nil, apiErr
}

// backendError is the body the backend sends with non-2xx responses.
type backendError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// errorFromResponse maps a non-2xx response to a domain error.
func errorFromResponse(status int, body []byte) *domainerrors.Error {
	var be backendError
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &be)
	}

	err := &domainerrors.Error{
		Code:           domainerrors.CodeForStatus(status),
		Message:        "request failed with status code " + strconv.Itoa(status),
		Status:         status,
		BackendMessage: strings.TrimSpace(be.Message),
		BackendError:   strings.TrimSpace(be.Error),
	}
	if status == http.StatusUnauthorized {
		err.Message = domainerrors.MsgSessionExpired
	}
	return err
}

func (c *Client) handleUnauthorized() {
	if err := c.creds.Clear(); err != nil {
		c.logger.Warn("failed to clear credential after 401", "error", err)
	}

	c.mu.RLock()
	hook := c.onUnauthorized
	c.mu.RUnlock()

	if hook != nil {
		hook()
	}
}

// escape makes an ID safe for use as one path segment.
func escape(s string) string {
	return url.PathEscape(s)
}
