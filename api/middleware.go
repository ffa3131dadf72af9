/*
middleware.go - Request authentication

PURPOSE:
  Extracts the bearer token from incoming requests, verifies it, and
  places the resulting actor into the request context for handlers.

FLOW:
  Authorization: Bearer <token>
    -> auth.Service.ParseToken
    -> lending.Actor{ID, Admin}
    -> context
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/ledger"
	"github.com/warp/loan-engine/lending"
)

type contextKey string

const actorKey contextKey = "actor"

// actorFrom returns the authenticated actor stored in the context, or a
// zero actor when the request carried no valid token.
func actorFrom(ctx context.Context) lending.Actor {
	actor, _ := ctx.Value(actorKey).(lending.Actor)
	return actor
}

// requireAuth rejects requests without a valid bearer token and stores
// the resolved actor in the context for downstream handlers.
func requireAuth(authsvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "malformed authorization header")
				return
			}

			claims, err := authsvc.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			actor := lending.Actor{
				ID:    ledger.CustomerID(claims.CustomerID),
				Admin: claims.IsAdmin(),
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
