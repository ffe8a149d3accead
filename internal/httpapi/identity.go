package httpapi

import (
	"context"
	"net/http"
	"strings"

	"escashop/backend/internal/queue"
	"escashop/backend/internal/rbac"
)

type actorContextKey struct{}

// IdentityMiddleware lifts the gateway-asserted user id and role into the
// request context. Authentication itself happens upstream; this service
// only trusts the forwarded headers.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		roleHeader := r.Header.Get("X-User-Role")
		if userID == "" || roleHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		role, ok := rbac.ParseRole(roleHeader)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_role", "unrecognized role")
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, queue.Actor{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (queue.Actor, bool) {
	value := ctx.Value(actorContextKey{})
	if value == nil {
		return queue.Actor{}, false
	}
	actor, ok := value.(queue.Actor)
	return actor, ok
}

// requireActor rejects the request when no identity headers were
// forwarded.
func requireActor(w http.ResponseWriter, r *http.Request) (queue.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return queue.Actor{}, false
	}
	return actor, true
}

// requireAdmin additionally restricts the operation to admin-equivalent
// roles.
func requireAdmin(w http.ResponseWriter, r *http.Request) (queue.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return queue.Actor{}, false
	}
	if actor.Role != rbac.RoleSuperAdmin && actor.Role != rbac.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role required")
		return queue.Actor{}, false
	}
	return actor, true
}
