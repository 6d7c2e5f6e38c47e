package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teemow/cloudmailbot/internal/binding"
	"github.com/teemow/cloudmailbot/internal/cloudmail"
	"github.com/teemow/cloudmailbot/internal/logging"
	"github.com/teemow/cloudmailbot/internal/mailfmt"
)

// Backend is the part of the CloudMail client the handlers use.
type Backend interface {
	AddUsers(ctx context.Context, accounts ...cloudmail.Account) error
	LatestMail(ctx context.Context, email string) (*cloudmail.Mail, error)
	RegistrationToken(ctx context.Context) string
}

// Event is one command invocation.
type Event struct {
	UserID  string
	Args    []string
	IsAdmin bool
}

// Reply is what a command sends back, in order.
type Reply struct {
	Messages []string

	// Mailbox is the address the command acted on, for auditing.
	Mailbox string
	// Err is set when the command failed. It is not shown to the user;
	// the messages already explain the failure.
	Err error
}

func (r *Reply) say(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Text joins the messages with blank lines.
func (r Reply) Text() string {
	return strings.Join(r.Messages, "\n\n")
}

// Handler implements the commands.
type Handler struct {
	backend Backend
	store   binding.Store
	domain  string
	logger  *slog.Logger
}

// NewHandler creates a Handler. domain is appended to bare usernames.
func NewHandler(backend Backend, store binding.Store, domain string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		backend: backend,
		store:   store,
		domain:  domain,
		logger:  logger,
	}
}

// NormalizeAddress appends domain to input unless it already holds an '@'.
func NormalizeAddress(input, domain string) string {
	if strings.Contains(input, "@") {
		return input
	}
	return input + domain
}

// Register creates an account and binds it to the caller.
// Args: username, password.
func (h *Handler) Register(ctx context.Context, ev Event) Reply {
	var reply Reply
	email := NormalizeAddress(ev.Args[0], h.domain)
	reply.Mailbox = email
	reply.say("正在注册 %s ...", email)

	err := h.backend.AddUsers(ctx, cloudmail.Account{Email: email, Password: ev.Args[1]})
	if err != nil {
		h.logger.Warn("registration failed", logging.UserHash(email), logging.Err(err))
		reply.say("❌ 注册失败: %s", err.Error())
		reply.Err = err
		return reply
	}

	if err := h.store.Set(ctx, ev.UserID, email); err != nil {
		h.logger.Error("saving binding failed", logging.ChatUser(ev.UserID), logging.Err(err))
		reply.say("✅ 注册成功！\n账号: %s\n⚠️ 自动绑定失败，请使用 /绑定邮箱 %s", email, email)
		reply.Err = err
		return reply
	}

	h.logger.Info("mailbox registered", logging.UserHash(email), logging.ChatUser(ev.UserID))
	reply.say("✅ 注册成功！\n账号: %s\n已自动绑定，发送 /最新邮件 即可查信。", email)
	return reply
}

// Bind records the caller's mailbox without contacting the server.
// Args: email or local part.
func (h *Handler) Bind(ctx context.Context, ev Event) Reply {
	var reply Reply
	email := NormalizeAddress(ev.Args[0], h.domain)
	reply.Mailbox = email

	if err := h.store.Set(ctx, ev.UserID, email); err != nil {
		h.logger.Error("saving binding failed", logging.ChatUser(ev.UserID), logging.Err(err))
		reply.say("⚠️ 绑定失败: %s", err.Error())
		reply.Err = err
		return reply
	}

	reply.say("✅ 绑定成功！\n当前绑定: %s", email)
	return reply
}

// Unbind drops the caller's binding.
func (h *Handler) Unbind(ctx context.Context, ev Event) Reply {
	var reply Reply
	email, ok, err := h.store.Get(ctx, ev.UserID)
	if err != nil {
		reply.say("⚠️ 解绑失败: %s", err.Error())
		reply.Err = err
		return reply
	}
	if !ok {
		reply.say("ℹ️ 你还没有绑定邮箱。")
		return reply
	}
	reply.Mailbox = email

	if err := h.store.Remove(ctx, ev.UserID); err != nil {
		reply.say("⚠️ 解绑失败: %s", err.Error())
		reply.Err = err
		return reply
	}
	reply.say("✅ 已解绑邮箱 %s", email)
	return reply
}

// Latest shows the newest mail of the caller's bound mailbox.
func (h *Handler) Latest(ctx context.Context, ev Event) Reply {
	var reply Reply
	email, ok, err := h.store.Get(ctx, ev.UserID)
	if err != nil {
		reply.say("⚠️ 查信失败: %s", err.Error())
		reply.Err = err
		return reply
	}
	if !ok {
		reply.say("⚠️ 你还没有绑定邮箱。\n请使用 /注册邮箱 <用户> <密码> \n或 /绑定邮箱 <邮箱>")
		return reply
	}
	reply.Mailbox = email

	mail, err := h.backend.LatestMail(ctx, email)
	if err != nil {
		reply.say("⚠️ 查信失败: %s", err.Error())
		reply.Err = err
		return reply
	}
	if mail == nil {
		reply.say("📭 邮箱 %s 暂无邮件。", email)
		return reply
	}

	reply.Messages = append(reply.Messages, mailfmt.Summarize(email, mail).String())
	return reply
}

// Debug checks that the admin credentials yield a registration token.
func (h *Handler) Debug(ctx context.Context, ev Event) Reply {
	var reply Reply
	if !ev.IsAdmin {
		reply.say("⛔ 该指令仅管理员可用。")
		reply.Err = ErrPermissionDenied
		return reply
	}

	token := h.backend.RegistrationToken(ctx)
	if token == "" {
		reply.say("❌ 管理员登录失败，请检查配置。")
		reply.Err = ErrAdminLogin
		return reply
	}

	prefix := token
	if r := []rune(prefix); len(r) > 10 {
		prefix = string(r[:10])
	}
	reply.say("✅ 管理员登录成功！Token前缀: %s...", prefix)
	return reply
}
