// Package commands implements the mailbox chat commands.
//
//	/注册邮箱 <用户名> <密码>   create an account and bind it
//	/绑定邮箱 <邮箱或用户名>    bind an existing mailbox
//	/解绑邮箱                  drop the binding
//	/最新邮件                  show the newest received mail
//	/邮件调试                  check the admin credentials (admins only)
//	/邮箱帮助                  list the commands
//
// Handler holds the command logic. Router parses "/name args" text,
// checks argument counts and admin rights, and records metrics, a span and
// an audit record for every command it runs. The same Router serves the
// chat bot and the MCP tools.
package commands
