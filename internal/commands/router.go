package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/cloudmailbot/internal/instrumentation"
	"github.com/teemow/cloudmailbot/internal/logging"
)

// Command names, without the leading slash.
const (
	CmdRegister = "注册邮箱"
	CmdBind     = "绑定邮箱"
	CmdUnbind   = "解绑邮箱"
	CmdLatest   = "最新邮件"
	CmdDebug    = "邮件调试"
	CmdHelp     = "邮箱帮助"
)

// Invocation sources for the audit log.
const (
	SourceChat = "chat"
	SourceMCP  = "mcp"
)

// Command describes one routable command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Args        int
	AdminOnly   bool
	Run         func(context.Context, Event) Reply
}

// RouterOptions configures a Router. All fields are optional.
type RouterOptions struct {
	// IsAdmin reports whether a user may run admin-only commands.
	IsAdmin func(userID string) bool
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Router dispatches command text to a Handler.
type Router struct {
	commands map[string]Command
	order    []string
	isAdmin  func(string) bool
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
	logger   *slog.Logger
}

// NewRouter registers the mailbox commands backed by h.
func NewRouter(h *Handler, opts RouterOptions) *Router {
	r := &Router{
		commands: make(map[string]Command),
		isAdmin:  opts.IsAdmin,
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		logger:   opts.Logger,
	}
	if r.isAdmin == nil {
		r.isAdmin = func(string) bool { return false }
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	r.add(Command{Name: CmdRegister, Usage: "/注册邮箱 <用户名> <密码>", Description: "注册新邮箱并自动绑定", Args: 2, Run: h.Register})
	r.add(Command{Name: CmdBind, Usage: "/绑定邮箱 <邮箱或用户名>", Description: "绑定已有邮箱", Args: 1, Run: h.Bind})
	r.add(Command{Name: CmdUnbind, Usage: "/解绑邮箱", Description: "解除邮箱绑定", Run: h.Unbind})
	r.add(Command{Name: CmdLatest, Usage: "/最新邮件", Description: "查看最新一封邮件", Run: h.Latest})
	r.add(Command{Name: CmdDebug, Usage: "/邮件调试", Description: "测试管理员连接", AdminOnly: true, Run: h.Debug})
	r.add(Command{Name: CmdHelp, Usage: "/邮箱帮助", Description: "显示本帮助", Run: r.help})
	return r
}

func (r *Router) add(c Command) {
	r.commands[c.Name] = c
	r.order = append(r.order, c.Name)
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Parse splits "/name arg1 arg2" into name and args. ok is false for text
// that does not start with a slash.
func Parse(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Handle runs the chat command in text. handled is false when text is not
// one of this router's commands, so other bots' commands pass through.
func (r *Router) Handle(ctx context.Context, userID, text string) (reply Reply, handled bool) {
	name, args, ok := Parse(text)
	if !ok {
		return Reply{}, false
	}
	if _, known := r.commands[name]; !known {
		return Reply{}, false
	}
	reply, _ = r.Execute(ctx, SourceChat, userID, name, args)
	return reply, true
}

// Execute runs the named command for userID, resolving admin rights from
// the configured admin IDs. The error is ErrUnknownCommand or the command's
// own failure; the reply always explains it.
func (r *Router) Execute(ctx context.Context, source, userID, name string, args []string) (Reply, error) {
	return r.ExecuteAs(ctx, source, userID, r.isAdmin(userID), name, args)
}

// ExecuteAs is Execute with admin rights decided by the caller. It serves
// front ends whose user IDs are not authenticated, such as MCP tools.
func (r *Router) ExecuteAs(ctx context.Context, source, userID string, admin bool, name string, args []string) (Reply, error) {
	cmd, ok := r.commands[name]
	if !ok {
		return Reply{Messages: []string{"❓ 未知指令 /" + name + "，发送 /邮箱帮助 查看可用指令。"}},
			fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	ctx, span := instrumentation.StartCommandSpan(ctx, name)
	defer span.End()

	inv := instrumentation.NewCommandInvocation(name, source).
		WithUser(userID, admin).
		WithSpanContext(ctx)
	start := time.Now()

	var reply Reply
	if len(args) != cmd.Args {
		reply = Reply{Messages: []string{"用法: " + cmd.Usage}, Err: ErrUsage}
	} else {
		reply = cmd.Run(ctx, Event{UserID: userID, Args: args, IsAdmin: admin})
	}

	inv.WithMailbox(reply.Mailbox).Complete(reply.Err)
	r.metrics.RecordCommandInvocation(ctx, name, inv.Status(), time.Since(start))
	r.audit.LogCommand(inv)

	if reply.Err != nil {
		instrumentation.SetSpanError(span, reply.Err)
		r.logger.Debug("command failed",
			slog.String(logging.KeyCommand, name),
			logging.ChatUser(userID),
			logging.Err(reply.Err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return reply, reply.Err
}

func (r *Router) help(_ context.Context, ev Event) Reply {
	var b strings.Builder
	b.WriteString("📮 邮箱助手指令:")
	for _, c := range r.Commands() {
		if c.AdminOnly && !ev.IsAdmin {
			continue
		}
		b.WriteString("\n")
		b.WriteString(c.Usage)
		b.WriteString(" - ")
		b.WriteString(c.Description)
	}
	return Reply{Messages: []string{b.String()}}
}
