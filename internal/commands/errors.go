package commands

import "errors"

var (
	// ErrPermissionDenied is recorded when a non-admin runs an admin command.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAdminLogin is recorded when the debug command cannot log in.
	ErrAdminLogin = errors.New("admin login failed")
	// ErrUsage is recorded when a command gets the wrong number of arguments.
	ErrUsage = errors.New("wrong number of arguments")
	// ErrUnknownCommand is returned by Execute for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")
)
