package mailbox_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/server"
	"github.com/teemow/cloudmailbot/internal/tools/common"
)

// Tool names.
const (
	ToolRegister = "mailbox_register"
	ToolBind     = "mailbox_bind"
	ToolUnbind   = "mailbox_unbind"
	ToolLatest   = "mailbox_latest"
	ToolDebug    = "mailbox_debug"
)

var userIDOption = mcp.WithString("user_id",
	mcp.Description("Chat user the call acts for (default: 'default'). Bindings are stored per user."),
)

// RegisterMailboxTools registers the mailbox tools with the MCP server.
// Tools that create accounts or expose admin tokens are skipped in
// read-only mode.
//
// The user_id argument is not authenticated, so it never grants admin
// rights. MCP callers are admins only when the operator disables read-only
// mode, which is also what exposes the admin tool.
func RegisterMailboxTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc == nil || sc.Router() == nil {
		return errors.New("server context with a command router is required")
	}
	admin := !readOnly

	bindTool := mcp.NewTool(ToolBind,
		mcp.WithDescription("Bind an existing CloudMail mailbox to the user. A bare username gets the configured domain appended."),
		userIDOption,
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Mailbox address or bare username"),
		),
	)
	s.AddTool(bindTool, common.InstrumentedToolHandler(ToolBind, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleBind(ctx, request, sc, admin)
	}))

	unbindTool := mcp.NewTool(ToolUnbind,
		mcp.WithDescription("Remove the user's mailbox binding"),
		userIDOption,
	)
	s.AddTool(unbindTool, common.InstrumentedToolHandler(ToolUnbind, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return execute(ctx, sc, request, admin, commands.CmdUnbind)
	}))

	latestTool := mcp.NewTool(ToolLatest,
		mcp.WithDescription("Show the newest mail in the user's bound mailbox, with sender, time (UTC+8), subject and a cleaned body"),
		userIDOption,
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(latestTool, common.InstrumentedToolHandler(ToolLatest, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return execute(ctx, sc, request, admin, commands.CmdLatest)
	}))

	if readOnly {
		return nil
	}

	registerTool := mcp.NewTool(ToolRegister,
		mcp.WithDescription("Create a CloudMail mailbox and bind it to the user"),
		userIDOption,
		mcp.WithString("username",
			mcp.Required(),
			mcp.Description("Mailbox username or full address"),
		),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password for the new mailbox"),
		),
	)
	s.AddTool(registerTool, common.InstrumentedToolHandler(ToolRegister, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRegister(ctx, request, sc, admin)
	}))

	debugTool := mcp.NewTool(ToolDebug,
		mcp.WithDescription("Check that the admin credentials can obtain a registration token. Offered only when the server runs with --yolo; user_id does not grant access."),
		userIDOption,
	)
	s.AddTool(debugTool, common.InstrumentedToolHandler(ToolDebug, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return execute(ctx, sc, request, admin, commands.CmdDebug)
	}))

	return nil
}

func handleBind(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, admin bool) (*mcp.CallToolResult, error) {
	email, ok := common.StringArg(request.GetArguments(), "email")
	if !ok {
		return mcp.NewToolResultError("email is required"), nil
	}
	return execute(ctx, sc, request, admin, commands.CmdBind, email)
}

func handleRegister(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, admin bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	username, ok := common.StringArg(args, "username")
	if !ok {
		return mcp.NewToolResultError("username is required"), nil
	}
	password, ok := common.StringArg(args, "password")
	if !ok {
		return mcp.NewToolResultError("password is required"), nil
	}
	return execute(ctx, sc, request, admin, commands.CmdRegister, username, password)
}

// execute runs a router command for the tool's user. Command failures are
// tool errors carrying the same text a chat user would see.
func execute(ctx context.Context, sc *server.ServerContext, request mcp.CallToolRequest, admin bool, name string, args ...string) (*mcp.CallToolResult, error) {
	userID := common.UserIDFromArgs(request.GetArguments())
	reply, err := sc.Router().ExecuteAs(ctx, commands.SourceMCP, userID, admin, name, args)
	if err != nil {
		return mcp.NewToolResultError(reply.Text()), nil
	}
	return mcp.NewToolResultText(reply.Text()), nil
}
