package cloudmail

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "s3cret"
	testQueryToken    = "jwt-token-0123456789"
	testRegToken      = "toolbox-token-0123456789"
)

// mockServer is a scripted CloudMail server.
type mockServer struct {
	t      *testing.T
	server *httptest.Server

	logins       atomic.Int32
	genTokens    atomic.Int32
	primaryCalls atomic.Int32
	fallbackHits atomic.Int32

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	lastAuth map[string]string
	lastBody map[string][]byte
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{
		t:        t,
		handlers: map[string]http.HandlerFunc{},
		lastAuth: map[string]string{},
		lastBody: map[string][]byte{},
	}
	m.handle("/api/login", func(w http.ResponseWriter, r *http.Request) {
		m.logins.Add(1)
		writeJSON(w, map[string]any{"code": 200, "data": map[string]string{"token": testQueryToken}})
	})
	m.handle("/api/public/genToken", func(w http.ResponseWriter, r *http.Request) {
		m.genTokens.Add(1)
		writeJSON(w, map[string]any{"code": 200, "data": testRegToken})
	})

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
		m.lastBody[r.URL.Path] = body
		h, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()

		switch r.URL.Path {
		case pathListPrimary:
			m.primaryCalls.Add(1)
		case pathListFallback:
			m.fallbackHits.Add(1)
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockServer) handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

func (m *mockServer) auth(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth[path]
}

func (m *mockServer) body(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody[path]
}

func (m *mockServer) client(opts ...Option) *Client {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(Config{
		BaseURL:       m.server.URL + "/",
		AdminEmail:    testAdminEmail,
		AdminPassword: testAdminPassword,
		Timeout:       5 * time.Second,
	}, opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
