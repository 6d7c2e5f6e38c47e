package instrumentation

import "strings"

// Known CloudMail API paths. Anything else is reported as "other" so a
// misconfigured path cannot grow the label set.
var knownEndpoints = map[string]struct{}{
	"/api/login":           {},
	"/api/public/genToken": {},
	"/api/public/addUser":  {},
	"/api/allEmail/list":   {},
	"/api/email/allList":   {},
}

// EndpointLabel maps a request path to a bounded metric label.
func EndpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if _, ok := knownEndpoints[path]; ok {
		return path
	}
	return "other"
}

// ExtractUserDomain returns the domain of an address, or "unknown".
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}
	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return "unknown"
}
