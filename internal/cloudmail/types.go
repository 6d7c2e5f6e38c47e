package cloudmail

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// TokenKind selects one of the two token slots.
type TokenKind int

const (
	// TokenQuery authorizes mail listing.
	TokenQuery TokenKind = iota
	// TokenRegistration authorizes account creation.
	TokenRegistration
)

func (k TokenKind) String() string {
	switch k {
	case TokenQuery:
		return "query"
	case TokenRegistration:
		return "registration"
	default:
		return "unknown"
	}
}

func (k TokenKind) loginPath() string {
	if k == TokenRegistration {
		return "/api/public/genToken"
	}
	return "/api/login"
}

// Kind classifies the outcome of a request.
type Kind string

const (
	KindOK            Kind = "ok"
	KindConfigMissing Kind = "config_missing"
	KindAuthFailed    Kind = "auth_failed"
	KindNotFound      Kind = "not_found"
	KindTokenInvalid  Kind = "token_invalid"
	KindTransport     Kind = "transport"
	KindNonJSON       Kind = "non_json"
)

var (
	// ErrConfigMissing means the base URL or admin credentials are not set.
	ErrConfigMissing = errors.New("cloudmail: configuration incomplete")
	// ErrUnrecognizedShape means a body parsed as JSON but matched no known layout.
	ErrUnrecognizedShape = errors.New("cloudmail: unrecognized response shape")
	// ErrAuthentication means the token endpoint rejected the credentials.
	ErrAuthentication = errors.New("cloudmail: authentication failed")
)

// AuthError reports a failure to obtain a token for a slot.
type AuthError struct {
	Kind TokenKind
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cloudmail: %s token: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Result is the normalized outcome of one API call.
type Result struct {
	Kind Kind

	// Status is the HTTP status, zero when no response was received.
	Status int

	// Fields decoded from the JSON envelope. Success is nil when the body
	// did not carry a "success" field.
	Code    int
	Success *bool
	Msg     string
	Message string
	Data    json.RawMessage

	// Raw holds the body when it was not JSON.
	Raw string
}

// Failed reports whether the call did not succeed: any non-OK kind, or an
// OK body that explicitly says success=false.
func (r *Result) Failed() bool {
	if r.Kind != KindOK {
		return true
	}
	return r.Success != nil && !*r.Success
}

// Succeeded reports an explicit success: code 200 or success=true.
func (r *Result) Succeeded() bool {
	if r.Kind != KindOK {
		return false
	}
	return r.Code == 200 || (r.Success != nil && *r.Success)
}

// Text returns the most specific human-readable message: msg, then
// message, then the raw body.
func (r *Result) Text() string {
	switch {
	case r.Msg != "":
		return r.Msg
	case r.Message != "":
		return r.Message
	case r.Raw != "":
		return r.Raw
	default:
		return fmt.Sprintf("%s (code %d)", r.Kind, r.Code)
	}
}

// Err wraps the result as an error. It returns nil for a result that has
// not failed.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	return &APIError{Result: r}
}

// APIError is a failed Result used as an error.
type APIError struct {
	Result *Result
}

func (e *APIError) Error() string {
	return e.Result.Text()
}

// envelope is the common {code, success, msg, message, data} body.
type envelope struct {
	Code    flexInt
	Success *bool
	Msg     flexString
	Message flexString
	Data    json.RawMessage
}

// decodeEnvelope reads the envelope fields one by one so that a field of an
// unexpected type is skipped instead of rejecting the whole body. It fails
// only for bodies that are not JSON. A JSON body that is not an object is
// kept whole as data. skipped names the fields that could not be decoded.
func decodeEnvelope(body []byte) (env envelope, skipped []string, err error) {
	if !json.Valid(body) {
		return env, nil, errors.New("body is not JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		env.Data = json.RawMessage(bytes.TrimSpace(body))
		return env, []string{"<top-level>"}, nil
	}

	decode := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			skipped = append(skipped, key)
		}
	}
	decode("code", &env.Code)
	var success flexBool
	if raw, ok := fields["success"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &success); err != nil {
			skipped = append(skipped, "success")
		} else {
			b := bool(success)
			env.Success = &b
		}
	}
	decode("msg", &env.Msg)
	decode("message", &env.Message)
	env.Data = fields["data"]
	return env, skipped, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// flexBool accepts a JSON boolean, "true"/"false" style strings and 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", s)
		}
		*f = flexBool(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = n != 0
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			// Non-numeric codes are treated as absent.
			return nil
		}
		*f = flexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		i = int64(fl)
	}
	*f = flexInt(i)
	return nil
}

// flexString accepts a string, number or boolean and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// Account is one entry of an addUser request.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Mail is one message from the listing endpoints.
type Mail struct {
	Subject    string
	SendEmail  string
	Name       string
	CreateTime string
	CreatedAt  string
	Text       string
	HTML       string
	Intro      string
}

// UnmarshalJSON tolerates numbers and booleans where strings are expected.
func (m *Mail) UnmarshalJSON(b []byte) error {
	var raw struct {
		Subject    flexString `json:"subject"`
		SendEmail  flexString `json:"sendEmail"`
		Name       flexString `json:"name"`
		CreateTime flexString `json:"createTime"`
		CreatedAt  flexString `json:"createdAt"`
		Text       flexString `json:"text"`
		HTML       flexString `json:"html"`
		Intro      flexString `json:"intro"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Mail{
		Subject:    string(raw.Subject),
		SendEmail:  string(raw.SendEmail),
		Name:       string(raw.Name),
		CreateTime: string(raw.CreateTime),
		CreatedAt:  string(raw.CreatedAt),
		Text:       string(raw.Text),
		HTML:       string(raw.HTML),
		Intro:      string(raw.Intro),
	}
	return nil
}

// Timestamp returns createTime, falling back to createdAt.
func (m *Mail) Timestamp() string {
	if m.CreateTime != "" {
		return m.CreateTime
	}
	return m.CreatedAt
}
