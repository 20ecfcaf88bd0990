package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/inventrak/internal/domain/auth"
)

// endpoint is an API operation. A returned error is mapped to a status code
// by writeErr; the endpoint writes nothing in that case.
type endpoint func(w http.ResponseWriter, r *http.Request) error

type userKey struct{}

// userFrom returns the user authenticated for the request.
func userFrom(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

// forbiddenError reports a role that may not open a tab.
type forbiddenError struct {
	role auth.Role
	tab  auth.Tab
}

func (e *forbiddenError) Error() string {
	return "role " + string(e.role) + " may not access " + string(e.tab)
}

func (h *Handler) public(ep endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ep(w, r); err != nil {
			writeErr(w, r, err)
		}
	})
}

// signedIn requires a valid bearer token.
func (h *Handler) signedIn(ep endpoint) http.Handler {
	return h.public(func(w http.ResponseWriter, r *http.Request) error {
		u, err := h.authenticate(r)
		if err != nil {
			return err
		}
		ctx := context.WithValue(r.Context(), userKey{}, u)
		ctx = zctx.With(ctx, zap.String("user", u.ID), zap.String("role", string(u.Role)))
		return ep(w, r.WithContext(ctx))
	})
}

// tab requires a signed-in user whose role allows tab.
func (h *Handler) tab(tab auth.Tab, ep endpoint) http.Handler {
	return h.signedIn(func(w http.ResponseWriter, r *http.Request) error {
		u := userFrom(r.Context())
		if !u.Role.Allows(tab) {
			return &forbiddenError{role: u.Role, tab: tab}
		}
		return ep(w, r)
	})
}

func (h *Handler) authenticate(r *http.Request) (*auth.User, error) {
	token, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	u, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		return nil, errors.Wrap(err, "verify token")
	}
	return u, nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
