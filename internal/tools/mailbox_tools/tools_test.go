package mailbox_tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/cloudmailbot/internal/binding"
	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/config"
	"github.com/teemow/cloudmailbot/internal/server"
)

const adminID = "+10000000000"

// newCloudMail fakes the CloudMail endpoints the tools reach.
func newCloudMail(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"code": 200, "data": map[string]string{"token": "jwt-token-0123456789"}})
	})
	mux.HandleFunc("/api/public/genToken", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"code": 200, "data": "toolbox-token-0123456789"})
	})
	mux.HandleFunc("/api/public/addUser", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"code": 200, "message": "ok"})
	})
	mux.HandleFunc("/api/allEmail/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userEmail") != "alice@example.com" {
			writeJSON(w, map[string]any{"code": 200, "data": []any{}})
			return
		}
		writeJSON(w, map[string]any{"code": 200, "data": map[string]any{"list": []map[string]string{{
			"subject":    "Welcome",
			"name":       "Bob",
			"sendEmail":  "bob@example.com",
			"createTime": "2024-05-01 04:00:00",
			"text":       "hello alice",
		}}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, readOnly bool) (*mcpserver.MCPServer, *binding.MemoryStore) {
	t.Helper()
	sc, store := newTestContext(t)
	s := mcpserver.NewMCPServer("test-server", "1.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterMailboxTools(s, sc, readOnly))
	return s, store
}

func newTestContext(t *testing.T) (*server.ServerContext, *binding.MemoryStore) {
	t.Helper()
	api := newCloudMail(t)
	store := binding.NewMemoryStore()
	sc, err := server.NewServerContext(context.Background(), &config.Config{
		APIBaseURL:    api.URL,
		EmailDomain:   "@example.com",
		AdminEmail:    "admin@example.com",
		AdminPassword: "secret",
		AdminIDs:      []string{adminID},
	},
		server.WithStore(store),
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, store
}

func call(t *testing.T, s *mcpserver.MCPServer, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	st, ok := s.ListTools()[tool]
	require.True(t, ok, "tool %s not registered", tool)

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	result, err := st.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", result.Content[0])
	return tc.Text
}

func TestRegisterMailboxTools_ReadOnly(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     []string
		absent   []string
	}{
		{
			name:     "read-only hides register and debug",
			readOnly: true,
			want:     []string{ToolBind, ToolUnbind, ToolLatest},
			absent:   []string{ToolRegister, ToolDebug},
		},
		{
			name:     "read-write registers everything",
			readOnly: false,
			want:     []string{ToolBind, ToolUnbind, ToolLatest, ToolRegister, ToolDebug},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.readOnly)
			tools := s.ListTools()
			for _, name := range tt.want {
				assert.Contains(t, tools, name)
			}
			for _, name := range tt.absent {
				assert.NotContains(t, tools, name)
			}
		})
	}
}

func TestRegisterMailboxTools_RequiresRouter(t *testing.T) {
	s := mcpserver.NewMCPServer("test-server", "1.0.0")
	assert.Error(t, RegisterMailboxTools(s, nil, true))
}

func TestBindAndLatest(t *testing.T) {
	s, store := newTestServer(t, true)

	result := call(t, s, ToolBind, map[string]any{"user_id": "u1", "email": "alice"})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "alice@example.com")

	email, ok, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", email)

	result = call(t, s, ToolLatest, map[string]any{"user_id": "u1"})
	assert.False(t, result.IsError)
	out := text(t, result)
	assert.Contains(t, out, "Bob <bob@example.com>")
	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "hello alice")
}

func TestLatest_Unbound(t *testing.T) {
	s, _ := newTestServer(t, true)

	result := call(t, s, ToolLatest, nil)
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "还没有绑定邮箱")
}

func TestBind_MissingEmail(t *testing.T) {
	s, _ := newTestServer(t, true)

	result := call(t, s, ToolBind, map[string]any{"user_id": "u1"})
	assert.True(t, result.IsError)
	assert.Equal(t, "email is required", text(t, result))
}

func TestUnbind_DefaultUser(t *testing.T) {
	s, store := newTestServer(t, true)
	require.NoError(t, store.Set(context.Background(), "default", "carol@example.com"))

	result := call(t, s, ToolUnbind, map[string]any{})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "carol@example.com")
	assert.Equal(t, 0, store.Len())
}

func TestRegister(t *testing.T) {
	s, store := newTestServer(t, false)

	result := call(t, s, ToolRegister, map[string]any{"user_id": "u2", "username": "dave", "password": "pw"})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "注册成功")

	email, ok, err := store.Get(context.Background(), "u2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dave@example.com", email)
}

func TestDebug_OperatorTrusted(t *testing.T) {
	s, _ := newTestServer(t, false)

	result := call(t, s, ToolDebug, map[string]any{"user_id": "u1"})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "Token前缀: toolbox-to...")
}

func TestDebug_UserIDGrantsNoAdmin(t *testing.T) {
	sc, _ := newTestContext(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = ToolDebug
	req.Params.Arguments = map[string]any{"user_id": adminID}
	result, err := execute(context.Background(), sc, req, false, commands.CmdDebug)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "仅管理员可用")
}

func TestDebug_NotCallableReadOnly(t *testing.T) {
	s, _ := newTestServer(t, true)

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"mailbox_debug","arguments":{"user_id":"` + adminID + `"}}}`)
	resp := s.HandleMessage(context.Background(), msg)
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "error")
	assert.NotContains(t, decoded, "result")
	assert.NotContains(t, string(raw), "toolbox-to")
}
