package auth

import (
	"net/http"
	"strings"

	"github.com/learnforge/learnforge-lms/internal/rbac"
)

// Middleware validates the bearer token and attaches the subject and the
// DB-resolved role to the request context. The role read here is
// authoritative; nothing is trusted from token claims beyond the subject.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			ident, err := svc.Verify(r.Context(), strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), ident.Username)
			ctx = rbac.WithRole(ctx, ident.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
