// Package cloudmail is a client for the CloudMail webmail admin API.
//
// The API uses two independent bearer tokens:
//   - a query token from POST /api/login, used to list mail
//   - a registration token from POST /api/public/genToken, used to add users
//
// Both are cached by a TokenCache for two hours and dropped as soon as the
// server answers 401. Tokens are sent in the Authorization header as is,
// without a scheme.
//
// Client.Do never returns an error. Every outcome, including transport
// failures and non-JSON bodies, is folded into a *Result whose Kind tells
// the caller what happened:
//
//	res := client.Do(ctx, cloudmail.Request{
//	    Method: http.MethodGet,
//	    Path:   "/api/allEmail/list",
//	    Query:  url.Values{"userEmail": {"alice@example.com"}},
//	    Token:  cloudmail.TokenQuery,
//	})
//	if res.Failed() {
//	    return res.Err()
//	}
//
// The typed helpers AddUsers and LatestMail build on Do and decode the
// loosely structured response bodies (see DecodeToken and DecodeMailList).
package cloudmail
