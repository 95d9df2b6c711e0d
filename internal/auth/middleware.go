package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

const sessionRoleKey = "role"

// Middleware wires role based authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the current user carries one of the listed roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if _, ok := currentUserID(sess); !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			role := Role(sess.Get(sessionRoleKey))
			if !role.Valid() {
				if m.Logger != nil {
					m.Logger.Error("session carries unknown role", slog.String("role", string(role)))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if _, ok := allowed[role]; !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser ensures a user is logged in, regardless of role.
func (m Middleware) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if _, ok := currentUserID(sess); !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func currentUserID(sess *shared.Session) (int64, bool) {
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// CurrentUserID extracts the logged in user id from the request session.
func CurrentUserID(sess *shared.Session) int64 {
	id, _ := currentUserID(sess)
	return id
}
