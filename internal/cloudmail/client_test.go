package cloudmail

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ConfigMissing(t *testing.T) {
	c := New(Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword})
	res := c.Do(context.Background(), Request{Method: http.MethodGet, Path: pathListPrimary})

	assert.Equal(t, KindConfigMissing, res.Kind)
	assert.True(t, res.Failed())
	assert.Equal(t, "未配置 api_base_url", res.Text())
}

func TestDo_AuthFailed(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/api/public/genToken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 401, "msg": "bad credentials"})
	})

	res := srv.client().Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   pathAddUser,
		Token:  TokenRegistration,
	})
	assert.Equal(t, KindAuthFailed, res.Kind)
	assert.Equal(t, "获取 registration Token 失败", res.Text())
}

func TestDo_Headers(t *testing.T) {
	srv := newMockServer(t)
	var got http.Header
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, map[string]any{"code": 200, "data": []any{}})
	})

	res := srv.client().Do(context.Background(), Request{Method: http.MethodGet, Path: pathListPrimary})
	require.Equal(t, KindOK, res.Kind)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, testQueryToken, got.Get("Authorization"), "token is sent without a scheme")
	_, err := uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestDo_NotFound(t *testing.T) {
	srv := newMockServer(t)
	res := srv.client().Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/missing"})

	assert.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, 404, res.Code)
	assert.Equal(t, "接口 404: /api/missing", res.Text())
}

func TestDo_UnauthorizedInvalidatesSlot(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := srv.client()
	ctx := context.Background()

	res := c.Do(ctx, Request{Method: http.MethodGet, Path: pathListPrimary})
	assert.Equal(t, KindTokenInvalid, res.Kind)
	assert.Equal(t, 401, res.Code)
	assert.True(t, c.Tokens().Expiry(TokenQuery).IsZero(), "slot cleared")
	assert.Equal(t, int32(1), srv.logins.Load())

	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 200})
	})
	res = c.Do(ctx, Request{Method: http.MethodGet, Path: pathListPrimary})
	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, int32(2), srv.logins.Load(), "re-authenticated after 401")
}

func TestDo_NonJSON(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	res := srv.client().Do(context.Background(), Request{Method: http.MethodGet, Path: pathListPrimary})
	assert.Equal(t, KindNonJSON, res.Kind)
	assert.Equal(t, "HTTP 502", res.Msg)
	assert.Equal(t, "<html>bad gateway</html>", res.Raw)
	assert.Equal(t, 502, res.Status)
}

func TestDo_Transport(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	c := srv.client(WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	res := c.Do(context.Background(), Request{Method: http.MethodGet, Path: pathListPrimary})
	assert.Equal(t, KindTransport, res.Kind)
	assert.NotEmpty(t, res.Msg)
}

func TestDo_Envelope(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathAddUser, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"500","success":false,"message":"exists","data":{"x":1}}`))
	})

	res := srv.client().Do(context.Background(), Request{Method: http.MethodPost, Path: pathAddUser, Token: TokenRegistration})
	require.Equal(t, KindOK, res.Kind)
	assert.Equal(t, 500, res.Code)
	require.NotNil(t, res.Success)
	assert.False(t, *res.Success)
	assert.True(t, res.Failed())
	assert.Equal(t, "exists", res.Text())
	assert.JSONEq(t, `{"x":1}`, string(res.Data))

	var apiErr *APIError
	require.True(t, errors.As(res.Err(), &apiErr))
	assert.Equal(t, "exists", apiErr.Error())
}

func TestDo_LenientEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantSuccess *bool
		wantMsg     string
		wantData    string
	}{
		{
			name:        "string booleans",
			body:        `{"code":"200","success":"false","msg":"no"}`,
			wantCode:    200,
			wantSuccess: boolPtr(false),
			wantMsg:     "no",
		},
		{
			name:        "numeric success",
			body:        `{"success":1}`,
			wantSuccess: boolPtr(true),
		},
		{
			name:     "wrong-typed fields skipped",
			body:     `{"code":{"v":200},"success":"maybe","msg":"kept","data":[1]}`,
			wantMsg:  "kept",
			wantData: `[1]`,
		},
		{
			name:     "top-level array kept as data",
			body:     `[{"subject":"hi"}]`,
			wantData: `[{"subject":"hi"}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMockServer(t)
			srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			res := srv.client().Do(context.Background(), Request{Method: http.MethodGet, Path: pathListPrimary})
			require.Equal(t, KindOK, res.Kind)
			assert.Equal(t, tt.wantCode, res.Code)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantMsg, res.Msg)
			if tt.wantData == "" {
				assert.Empty(t, res.Data)
			} else {
				assert.JSONEq(t, tt.wantData, string(res.Data))
			}
		})
	}
}

func TestAddUsers(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"code 200", `{"code":200}`, ""},
		{"success true", `{"success":true,"code":0}`, ""},
		{"msg", `{"code":500,"msg":"邮箱已存在"}`, "邮箱已存在"},
		{"message", `{"code":500,"message":"quota"}`, "quota"},
		{"raw", `{"code":500}`, `{"code":500}`},
		{"string success with code 200", `{"code":200,"success":"true","msg":"ok"}`, ""},
		{"string success alone", `{"code":0,"success":"true"}`, ""},
		{"malformed success ignored", `{"code":200,"success":{"ok":1}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMockServer(t)
			srv.handle(pathAddUser, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			c := srv.client()

			err := c.AddUsers(context.Background(), Account{Email: "new@example.com", Password: "pw"})
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
			}
			assert.Equal(t, testRegToken, srv.auth(pathAddUser))
			assert.JSONEq(t,
				`{"list":[{"email":"new@example.com","password":"pw"}]}`,
				string(srv.body(pathAddUser)))
		})
	}
}

func TestLatestMail_FallbackOnce(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListFallback, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice@example.com", r.URL.Query().Get("userEmail"))
		assert.Equal(t, "1", r.URL.Query().Get("size"))
		assert.Equal(t, "receive", r.URL.Query().Get("type"))
		writeJSON(w, map[string]any{"code": 200, "data": []map[string]string{{"subject": "from fallback"}}})
	})

	m, err := srv.client().LatestMail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "from fallback", m.Subject)
	assert.Equal(t, int32(1), srv.primaryCalls.Load())
	assert.Equal(t, int32(1), srv.fallbackHits.Load())
}

func TestLatestMail_BothMissing(t *testing.T) {
	srv := newMockServer(t)

	_, err := srv.client().LatestMail(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Equal(t, "接口 404: /api/email/allList", err.Error())
	assert.Equal(t, int32(1), srv.fallbackHits.Load())
}

func TestLatestMail_PrimaryObjectShape(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"code": 200,
			"data": map[string]any{"list": []map[string]string{{"subject": "newest"}, {"subject": "older"}}},
		})
	})

	m, err := srv.client().LatestMail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "newest", m.Subject)
	assert.Equal(t, testQueryToken, srv.auth(pathListPrimary))
	assert.Zero(t, srv.fallbackHits.Load())
}

func TestLatestMail_Empty(t *testing.T) {
	for name, data := range map[string]any{
		"empty list":   map[string]any{"list": []any{}},
		"null":         nil,
		"unrecognized": map[string]any{"total": 0},
	} {
		t.Run(name, func(t *testing.T) {
			srv := newMockServer(t)
			srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"code": 200, "data": data})
			})
			m, err := srv.client().LatestMail(context.Background(), "alice@example.com")
			require.NoError(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestLatestMail_ServerSaysFailure(t *testing.T) {
	srv := newMockServer(t)
	srv.handle(pathListPrimary, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": false, "msg": "用户不存在"})
	})

	_, err := srv.client().LatestMail(context.Background(), "ghost@example.com")
	require.Error(t, err)
	assert.Equal(t, "用户不存在", err.Error())
}
