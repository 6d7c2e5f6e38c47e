// Package mailbox_tools exposes the mailbox chat commands as MCP tools.
//
// Each tool dispatches through the same command router as the chat bot, so
// replies, bindings and audit records are identical whichever front end
// the call came from:
//
//   - mailbox_register: create a mailbox and bind it to the caller
//   - mailbox_bind: bind an existing mailbox
//   - mailbox_unbind: drop the caller's binding
//   - mailbox_latest: show the newest mail of the bound mailbox
//   - mailbox_debug: check admin connectivity (admin users only)
//
// The optional user_id argument names the chat user the call acts for and
// defaults to "default". mailbox_register and mailbox_debug are only
// registered when the server is not read-only.
//
// Example MCP tool call:
//
//	{
//	  "tool": "mailbox_bind",
//	  "arguments": {
//	    "user_id": "+15559876543",
//	    "email": "alice"
//	  }
//	}
package mailbox_tools
