package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/cloudmailbot/internal/commands"
)

type echoHandler struct {
	users []string
}

func (e *echoHandler) Handle(_ context.Context, userID, text string) (commands.Reply, bool) {
	if !strings.HasPrefix(text, "/echo") {
		return commands.Reply{}, false
	}
	e.users = append(e.users, userID)
	return commands.Reply{Messages: []string{"first", strings.TrimPrefix(text, "/echo ")}}, true
}

func TestRunChat(t *testing.T) {
	h := &echoHandler{}
	in := strings.NewReader("/echo hi\n\nhello\n/quit\n/echo never\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), h, "+1555", in, &out))

	got := out.String()
	assert.Contains(t, got, "first\n\nhi\n")
	assert.Contains(t, got, "不是邮箱指令")
	assert.NotContains(t, got, "never")
	assert.Equal(t, []string{"+1555"}, h.users)
}

func TestRunChat_EOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), &echoHandler{}, "u", strings.NewReader("/echo x"), &out))
	assert.Contains(t, out.String(), "x")
}

func TestRunChat_CancelWhileWaitingForInput(t *testing.T) {
	in, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runChat(ctx, &echoHandler{}, "u", in, io.Discard)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runChat did not return after cancellation")
	}
}
