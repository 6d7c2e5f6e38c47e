package cloudmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/cloudmailbot/internal/instrumentation"
	"github.com/teemow/cloudmailbot/internal/logging"
)

// DefaultTimeout is the HTTP client timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL       string
	AdminEmail    string
	AdminPassword string
	Timeout       time.Duration
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  TokenKind
}

// Client dispatches authenticated requests to a CloudMail server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	tokens     *TokenCache
}

// New creates a Client. A trailing slash on the base URL is ignored.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o := &options{
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.WithOperation(o.logger, "cloudmail")

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL:    baseURL,
		httpClient: o.httpClient,
		logger:     o.logger,
		metrics:    o.metrics,
		tokens: newTokenCache(Credentials{
			BaseURL:  baseURL,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		}, o),
	}
}

// Tokens returns the client's token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// Do performs req and normalizes every outcome into a Result.
func (c *Client) Do(ctx context.Context, req Request) *Result {
	start := time.Now()
	ctx, span := instrumentation.StartAPISpan(ctx, req.Method, req.Path)
	defer span.End()

	res := c.do(ctx, req)

	duration := time.Since(start)
	span.SetAttributes(
		attribute.String(instrumentation.SpanAttrResult, string(res.Kind)),
		attribute.Int(instrumentation.SpanAttrStatus, res.Status),
	)
	if res.Failed() {
		instrumentation.SetSpanError(span, errors.New(res.Text()))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordAPIRequest(ctx, req.Method, req.Path, string(res.Kind), duration)

	level := slog.LevelDebug
	if res.Kind != KindOK {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "cloudmail request",
		slog.String("method", req.Method),
		logging.Endpoint(req.Path),
		logging.TokenKind(req.Token.String()),
		slog.String("kind", string(res.Kind)),
		slog.Int("http_status", res.Status),
		slog.Duration(logging.KeyDuration, duration))

	return res
}

func (c *Client) do(ctx context.Context, req Request) *Result {
	if c.baseURL == "" {
		return &Result{Kind: KindConfigMissing, Success: boolPtr(false), Msg: "未配置 api_base_url"}
	}

	token, err := c.tokens.Token(ctx, req.Token)
	if err != nil || token == "" {
		return &Result{
			Kind:    KindAuthFailed,
			Success: boolPtr(false),
			Msg:     fmt.Sprintf("获取 %s Token 失败", req.Token),
		}
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return &Result{Kind: KindTransport, Success: boolPtr(false), Msg: err.Error()}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Result{Kind: KindTransport, Success: boolPtr(false), Msg: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &Result{
			Kind:    KindNotFound,
			Status:  resp.StatusCode,
			Code:    http.StatusNotFound,
			Success: boolPtr(false),
			Msg:     "接口 404: " + req.Path,
		}
	case http.StatusUnauthorized:
		c.tokens.Invalidate(req.Token)
		return &Result{
			Kind:    KindTokenInvalid,
			Status:  resp.StatusCode,
			Code:    http.StatusUnauthorized,
			Success: boolPtr(false),
			Msg:     "Token 失效",
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Result{Kind: KindTransport, Status: resp.StatusCode, Success: boolPtr(false), Msg: err.Error()}
	}

	env, skipped, err := decodeEnvelope(body)
	if err != nil {
		return &Result{
			Kind:    KindNonJSON,
			Status:  resp.StatusCode,
			Success: boolPtr(false),
			Msg:     fmt.Sprintf("HTTP %d", resp.StatusCode),
			Raw:     string(body),
		}
	}

	if len(skipped) > 0 {
		c.logger.Warn("unrecognized envelope fields",
			logging.Endpoint(req.Path),
			slog.Any("fields", skipped))
	}

	return &Result{
		Kind:    KindOK,
		Status:  resp.StatusCode,
		Code:    int(env.Code),
		Success: env.Success,
		Msg:     string(env.Msg),
		Message: string(env.Message),
		Data:    env.Data,
		Raw:     string(body),
	}
}

func (c *Client) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", token)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	return httpReq, nil
}

func boolPtr(b bool) *bool {
	return &b
}
