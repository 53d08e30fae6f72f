package server

import (
	"net/http"

	"github.com/tjfontaine/deployhook/internal/auth"
	"github.com/tjfontaine/deployhook/internal/domain"
)

// AuthMiddleware rejects requests whose bearer token does not match one of
// the authenticator's hashes.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractToken(r)
			if err != nil {
				AddError(r.Context(), err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="deployhook"`)
				writeError(w, domain.ErrUnauthorized(err.Error()))
				return
			}

			if err := authenticator.ValidateToken(token); err != nil {
				AddError(r.Context(), err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="deployhook"`)
				writeError(w, domain.ErrUnauthorized("invalid token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
