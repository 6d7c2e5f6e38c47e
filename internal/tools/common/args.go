package common

import (
	"strings"
)

// DefaultUserID identifies the caller when a tool call names no user.
const DefaultUserID = "default"

// UserIDFromArgs returns the "user_id" argument, or DefaultUserID when it is
// missing, empty or not a string.
func UserIDFromArgs(args map[string]any) string {
	if v, ok := args["user_id"].(string); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return DefaultUserID
}

// StringArg returns the trimmed string argument key. ok is false when it is
// missing, empty or of another type.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
