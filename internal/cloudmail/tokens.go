package cloudmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/cloudmailbot/internal/instrumentation"
	"github.com/teemow/cloudmailbot/internal/logging"
)

// TokenTTL is how long an acquired token is reused.
const TokenTTL = 7200 * time.Second

const maxBodyBytes = 1 << 20

// Credentials are the admin credentials used for both token endpoints.
type Credentials struct {
	BaseURL  string
	Email    string
	Password string
}

func (c Credentials) complete() bool {
	return c.BaseURL != "" && c.Email != "" && c.Password != ""
}

// TokenCache holds the query and registration tokens.
type TokenCache struct {
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time

	mu    sync.Mutex
	slots [2]*oauth2.Token

	flight singleflight.Group
}

func newTokenCache(creds Credentials, o *options) *TokenCache {
	return &TokenCache{
		creds:      creds,
		httpClient: o.httpClient,
		logger:     o.logger,
		metrics:    o.metrics,
		now:        o.now,
	}
}

// Token returns a valid token for kind, authenticating when the slot is
// empty or expired. Concurrent refreshes of one slot share a single login,
// and a caller that gives up does not abort the login for the others.
func (c *TokenCache) Token(ctx context.Context, kind TokenKind) (string, error) {
	if !c.creds.complete() {
		return "", &AuthError{Kind: kind, Err: ErrConfigMissing}
	}

	if tok, ok := c.cached(kind); ok {
		c.metrics.RecordTokenLookup(ctx, kind.String(), instrumentation.TokenResultCached)
		return tok.AccessToken, nil
	}

	// The login outlives any single caller; the HTTP client timeout bounds it.
	loginCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(kind.String(), func() (any, error) {
		// A flight that finished just before this one may have filled the slot.
		if tok, ok := c.cached(kind); ok {
			return flightResult{token: tok.AccessToken, cached: true}, nil
		}
		tok, err := c.authenticate(loginCtx, kind)
		if err != nil {
			return flightResult{}, err
		}
		c.mu.Lock()
		c.slots[kind] = tok
		c.mu.Unlock()
		return flightResult{token: tok.AccessToken}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		c.metrics.RecordTokenLookup(loginCtx, kind.String(), instrumentation.TokenResultFailure)
		return "", &AuthError{Kind: kind, Err: ctx.Err()}
	case res = <-ch:
	}

	if res.Err != nil {
		c.metrics.RecordTokenLookup(ctx, kind.String(), instrumentation.TokenResultFailure)
		c.logger.Warn("token acquisition failed",
			logging.TokenKind(kind.String()),
			logging.Err(res.Err))
		return "", res.Err
	}

	fr := res.Val.(flightResult)
	result := instrumentation.TokenResultRefresh
	if fr.cached {
		result = instrumentation.TokenResultCached
	}
	c.metrics.RecordTokenLookup(ctx, kind.String(), result)
	return fr.token, nil
}

type flightResult struct {
	token  string
	cached bool
}

// QueryToken returns the query token, or "" when it cannot be obtained.
func (c *TokenCache) QueryToken(ctx context.Context) string {
	tok, _ := c.Token(ctx, TokenQuery)
	return tok
}

// RegistrationToken returns the registration token, or "" when it cannot be
// obtained.
func (c *TokenCache) RegistrationToken(ctx context.Context) string {
	tok, _ := c.Token(ctx, TokenRegistration)
	return tok
}

// Invalidate clears the slot for kind.
func (c *TokenCache) Invalidate(kind TokenKind) {
	c.mu.Lock()
	c.slots[kind] = nil
	c.mu.Unlock()
	c.logger.Debug("token invalidated", logging.TokenKind(kind.String()))
}

// Expiry returns the expiry of the cached token for kind, or the zero time.
func (c *TokenCache) Expiry(kind TokenKind) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok := c.slots[kind]; tok != nil {
		return tok.Expiry
	}
	return time.Time{}
}

// TokenSource adapts a slot to oauth2.TokenSource.
func (c *TokenCache) TokenSource(ctx context.Context, kind TokenKind) oauth2.TokenSource {
	return &slotSource{ctx: ctx, cache: c, kind: kind}
}

type slotSource struct {
	ctx   context.Context
	cache *TokenCache
	kind  TokenKind
}

func (s *slotSource) Token() (*oauth2.Token, error) {
	access, err := s.cache.Token(s.ctx, s.kind)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, Expiry: s.cache.Expiry(s.kind)}, nil
}

func (c *TokenCache) cached(kind TokenKind) (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := c.slots[kind]
	if tok == nil || tok.AccessToken == "" || !c.now().Before(tok.Expiry) {
		return nil, false
	}
	return tok, true
}

func (c *TokenCache) authenticate(ctx context.Context, kind TokenKind) (*oauth2.Token, error) {
	path := kind.loginPath()
	payload, err := json.Marshal(Account{Email: c.creds.Email, Password: c.creds.Password})
	if err != nil {
		return nil, &AuthError{Kind: kind, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &AuthError{Kind: kind, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	ctx, span := instrumentation.StartAPISpan(ctx, http.MethodPost, path)
	defer span.End()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordAPIRequest(ctx, http.MethodPost, path, string(KindTransport), time.Since(start))
		return nil, &AuthError{Kind: kind, Err: fmt.Errorf("login request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordAPIRequest(ctx, http.MethodPost, path, string(KindTransport), time.Since(start))
		return nil, &AuthError{Kind: kind, Err: fmt.Errorf("reading login response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: HTTP %d", ErrAuthentication, resp.StatusCode)
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordAPIRequest(ctx, http.MethodPost, path, string(KindAuthFailed), time.Since(start))
		return nil, &AuthError{Kind: kind, Err: err}
	}

	access, shape, err := DecodeToken(body)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordAPIRequest(ctx, http.MethodPost, path, string(KindAuthFailed), time.Since(start))
		return nil, &AuthError{Kind: kind, Err: err}
	}

	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordAPIRequest(ctx, http.MethodPost, path, string(KindOK), time.Since(start))
	c.logger.Info("token acquired",
		logging.TokenKind(kind.String()),
		slog.String("shape", shape.String()),
		slog.String("token", logging.SanitizeToken(access)))

	return &oauth2.Token{AccessToken: access, Expiry: c.now().Add(TokenTTL)}, nil
}
