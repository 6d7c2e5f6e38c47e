package cloudmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/teemow/cloudmailbot/internal/logging"
)

const (
	pathAddUser      = "/api/public/addUser"
	pathListPrimary  = "/api/allEmail/list"
	pathListFallback = "/api/email/allList"
)

// AddUsers creates accounts with the registration token. It succeeds when
// the server answers code 200 or success=true; otherwise the returned
// *APIError carries the server's message.
func (c *Client) AddUsers(ctx context.Context, accounts ...Account) error {
	res := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathAddUser,
		Body:   map[string][]Account{"list": accounts},
		Token:  TokenRegistration,
	})
	if res.Succeeded() {
		return nil
	}
	return &APIError{Result: res}
}

// ListMail fetches up to size received mails for email. When the primary
// listing endpoint answers 404 the legacy endpoint is tried once.
func (c *Client) ListMail(ctx context.Context, email string, size int) ([]Mail, error) {
	query := url.Values{
		"userEmail": {email},
		"size":      {strconv.Itoa(size)},
		"type":      {"receive"},
	}

	res := c.Do(ctx, Request{Method: http.MethodGet, Path: pathListPrimary, Query: query, Token: TokenQuery})
	if res.Code == http.StatusNotFound {
		c.logger.Info("primary listing endpoint missing, using fallback",
			logging.Endpoint(pathListFallback))
		res = c.Do(ctx, Request{Method: http.MethodGet, Path: pathListFallback, Query: query, Token: TokenQuery})
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	mails, shape, err := DecodeMailList(res.Data)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedShape) {
			c.logger.Warn("mail listing has an unrecognized shape, treating as empty",
				slog.String("shape", shape.String()))
			return nil, nil
		}
		return nil, err
	}
	return mails, nil
}

// LatestMail returns the newest received mail for email, or nil when the
// mailbox is empty.
func (c *Client) LatestMail(ctx context.Context, email string) (*Mail, error) {
	mails, err := c.ListMail(ctx, email, 1)
	if err != nil {
		return nil, err
	}
	latest, ok := Latest(mails)
	if !ok {
		return nil, nil
	}
	return latest, nil
}

// RegistrationToken returns the registration token, or "" when it cannot
// be obtained.
func (c *Client) RegistrationToken(ctx context.Context) string {
	return c.tokens.RegistrationToken(ctx)
}
