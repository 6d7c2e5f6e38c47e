package cloudmail

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/cloudmailbot/internal/instrumentation"
)

func TestToken_CachedWithinTTL(t *testing.T) {
	srv := newMockServer(t)
	clock := newFakeClock()
	tokens := srv.client(WithClock(clock.Now)).Tokens()
	ctx := context.Background()

	first, err := tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)
	clock.Advance(TokenTTL - time.Second)
	second, err := tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)

	assert.Equal(t, testQueryToken, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), srv.logins.Load())
}

func TestToken_RefreshedAfterExpiry(t *testing.T) {
	srv := newMockServer(t)
	clock := newFakeClock()
	tokens := srv.client(WithClock(clock.Now)).Tokens()
	ctx := context.Background()

	_, err := tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)
	clock.Advance(TokenTTL)
	_, err = tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)

	assert.Equal(t, int32(2), srv.logins.Load())
}

func TestToken_SlotsAreIndependent(t *testing.T) {
	srv := newMockServer(t)
	tokens := srv.client().Tokens()
	ctx := context.Background()

	assert.Equal(t, testQueryToken, tokens.QueryToken(ctx))
	assert.Equal(t, testRegToken, tokens.RegistrationToken(ctx))

	tokens.Invalidate(TokenQuery)
	assert.Equal(t, testRegToken, tokens.RegistrationToken(ctx))
	assert.Equal(t, int32(1), srv.genTokens.Load())

	assert.Equal(t, testQueryToken, tokens.QueryToken(ctx))
	assert.Equal(t, int32(2), srv.logins.Load())
}

func TestToken_ConcurrentRefreshSharesOneLogin(t *testing.T) {
	srv := newMockServer(t)
	release := make(chan struct{})
	srv.handle("/api/login", func(w http.ResponseWriter, r *http.Request) {
		srv.logins.Add(1)
		<-release
		writeJSON(w, map[string]string{"token": testQueryToken})
	})
	tokens := srv.client().Tokens()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tokens.QueryToken(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, testQueryToken, r)
	}
	assert.Equal(t, int32(1), srv.logins.Load())
}

func TestToken_MissingConfig(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", AdminEmail: testAdminEmail})

	_, err := c.Tokens().Token(context.Background(), TokenRegistration)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigMissing)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, TokenRegistration, authErr.Kind)
	assert.Empty(t, c.Tokens().RegistrationToken(context.Background()))
}

func TestToken_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
			wantErr: ErrAuthentication,
		},
		{
			name: "unrecognized shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"code": 500, "msg": "bad password"})
			},
			wantErr: ErrUnrecognizedShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMockServer(t)
			srv.handle("/api/login", tt.handler)
			_, err := srv.client().Tokens().Token(context.Background(), TokenQuery)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToken_LoginBodyCarriesCredentials(t *testing.T) {
	srv := newMockServer(t)
	_ = srv.client().Tokens().RegistrationToken(context.Background())

	assert.JSONEq(t,
		`{"email":"admin@example.com","password":"s3cret"}`,
		string(srv.body("/api/public/genToken")))
}

func TestTokenSource(t *testing.T) {
	srv := newMockServer(t)
	clock := newFakeClock()
	tokens := srv.client(WithClock(clock.Now)).Tokens()

	tok, err := tokens.TokenSource(context.Background(), TokenRegistration).Token()
	require.NoError(t, err)
	assert.Equal(t, testRegToken, tok.AccessToken)
	assert.Equal(t, clock.Now().Add(TokenTTL), tok.Expiry)
}

func TestToken_CancelledCallerDoesNotFailOthers(t *testing.T) {
	srv := newMockServer(t)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv.handle("/api/login", func(w http.ResponseWriter, r *http.Request) {
		srv.logins.Add(1)
		started <- struct{}{}
		<-release
		writeJSON(w, map[string]string{"token": testQueryToken})
	})
	tokens := srv.client().Tokens()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := tokens.Token(ctxA, TokenQuery)
		errA <- err
	}()
	<-started

	type outcome struct {
		token string
		err   error
	}
	resB := make(chan outcome, 1)
	go func() {
		tok, err := tokens.Token(context.Background(), TokenQuery)
		resB <- outcome{tok, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.Equal(t, testQueryToken, got.token)
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
	assert.Equal(t, int32(1), srv.logins.Load())
	assert.Equal(t, testQueryToken, tokens.QueryToken(context.Background()))
	assert.Equal(t, int32(1), srv.logins.Load())
}

// scriptedClock returns the queued times in order, then base.
type scriptedClock struct {
	mu    sync.Mutex
	base  time.Time
	queue []time.Time
}

func (c *scriptedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return c.base
	}
	t := c.queue[0]
	c.queue = c.queue[1:]
	return t
}

func (c *scriptedClock) push(ts ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, ts...)
}

// tokenLookups sums cloudmail_token_refresh_total by result for slot.
func tokenLookups(t *testing.T, reader *sdkmetric.ManualReader, slot string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cloudmail_token_refresh_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, _ := dp.Attributes.Value(attribute.Key("slot")); v.AsString() != slot {
					continue
				}
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				counts[result.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestToken_FilledDuringFlightCountsAsCached(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := instrumentation.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	srv := newMockServer(t)
	clock := &scriptedClock{base: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tokens := srv.client(WithClock(clock.Now), WithMetrics(metrics)).Tokens()
	ctx := context.Background()

	_, err = tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)

	// The fast path sees an expired slot; the re-check inside the flight
	// sees it valid, as if another flight had just refreshed it.
	clock.push(clock.base.Add(2 * TokenTTL))
	tok, err := tokens.Token(ctx, TokenQuery)
	require.NoError(t, err)
	assert.Equal(t, testQueryToken, tok)
	assert.Equal(t, int32(1), srv.logins.Load())

	counts := tokenLookups(t, reader, TokenQuery.String())
	assert.Equal(t, int64(1), counts[instrumentation.TokenResultRefresh])
	assert.Equal(t, int64(1), counts[instrumentation.TokenResultCached])
}
