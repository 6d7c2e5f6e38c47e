// Package cmd implements the command-line interface for cloudmailbot.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the mailbox tools
//   - bot: Answer mailbox commands on Signal
//   - chat: Run mailbox commands from the terminal
//   - debug: Check both CloudMail tokens and optionally read a mailbox
//   - config show: Print the effective configuration with secrets masked
//   - credential set|delete: Manage the admin password in the OS keyring
//   - generate-docs: Generate markdown documentation for commands and tools
//   - version: Display version information
package cmd
