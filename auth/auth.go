// Package auth implements the credential gate shared by the static file
// routes (HTTP Basic) and the terminal upgrade route (query parameter).
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// QueryParam carries base64(username:password) on the upgrade URL.
	QueryParam = "auth"
	// Realm is announced in the WWW-Authenticate challenge.
	Realm = "Web Terminal"

	basicPrefix = "Basic "
)

var (
	ErrRejected = errors.New("credentials rejected")
	ErrMissing  = errors.New("credentials missing")
	ErrEncoding = errors.New("credentials malformed")
)

// Credentials are the configured username and password.
type Credentials struct {
	Username string
	Password string
}

// Encode returns base64(username:password), the form expected by both the
// Authorization header and the auth query parameter.
func (c Credentials) Encode() string {
	return base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
}

// Match compares a decoded pair in constant time.
func (c Credentials) Match(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return u&p == 1
}

// CheckEncoded validates base64(username:password). A missing colon yields an
// empty password.
func (c Credentials) CheckEncoded(encoded string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	username, password, _ := strings.Cut(string(decoded), ":")
	if !c.Match(username, password) {
		return ErrRejected
	}

	return nil
}

// CheckHeader validates an "Authorization: Basic ..." header value.
func (c Credentials) CheckHeader(header string) error {
	if header == "" {
		return ErrMissing
	}

	encoded, ok := strings.CutPrefix(header, basicPrefix)
	if !ok {
		return fmt.Errorf("%w: not a basic authorization", ErrEncoding)
	}

	return c.CheckEncoded(encoded)
}

// CheckQuery validates the auth query parameter. Values that are not valid
// base64 are skipped; the first decodable value decides.
func (c Credentials) CheckQuery(query url.Values) error {
	values, ok := query[QueryParam]
	if !ok || len(values) == 0 {
		return ErrMissing
	}

	err := ErrMissing
	for _, v := range values {
		err = c.CheckEncoded(v)
		if !errors.Is(err, ErrEncoding) {
			return err
		}
	}

	return err
}

// Unauthorized writes a 401 with a Basic challenge.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", Realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// Middleware guards next with HTTP Basic authentication. onReject, if not nil,
// is called for every rejected request before the 401 is written.
func Middleware(c Credentials, onReject func(r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := c.CheckHeader(r.Header.Get("Authorization")); err != nil {
				if onReject != nil {
					onReject(r, err)
				}
				Unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
