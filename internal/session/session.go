// Package session carries the vendor identity of a request explicitly
// through context instead of reading it from ambient storage.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// HeaderVendorID carries the vendor identifier of the caller.
const HeaderVendorID = "X-Vendor-ID"

var ErrNoSession = errors.New("session: vendor id is required")

// Session identifies the vendor a request acts for. Token is forwarded to
// the upstream API as-is.
type Session struct {
	VendorID string
	Token    string
}

type contextKey struct{}

// FromRequest reads the session from request headers.
func FromRequest(r *http.Request) (Session, error) {
	sess := Session{
		VendorID: strings.TrimSpace(r.Header.Get(HeaderVendorID)),
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			sess.Token = strings.TrimSpace(token)
		}
	}

	if sess.VendorID == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored in ctx.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(Session)
	return sess, ok
}
