package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"wardbook.org/internal/audit"
	"wardbook.org/internal/auth"
	"wardbook.org/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAuth authenticates the bearer token in strict mode and attaches the
// actor to the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		actor, err := a.gate.Authenticate(r.Context(), raw)
		if err != nil {
			writeGateError(w, r, err)
			return
		}
		ctx := auth.ContextWithActor(r.Context(), actor)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission consults the static grant table for the actor's role.
// An unknown permission string is a deployment defect and maps to 500.
func (a *API) requirePermission(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		allowed, err := rbac.IsAllowed(actor.Role, permission)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "permission table misconfigured")
			return
		}
		if !allowed {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

func writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUserDeactivated):
		writeError(w, r, http.StatusForbidden, "account deactivated")
	case errors.Is(err, auth.ErrNoToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNoRefreshToken),
		errors.Is(err, auth.ErrRefreshTokenExpired),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrNoEmailToken),
		errors.Is(err, auth.ErrInvalidEmailToken),
		errors.Is(err, auth.ErrNoResetToken),
		errors.Is(err, auth.ErrInvalidResetToken),
		errors.Is(err, auth.ErrUserNotFound):
		w.Header().Set("WWW-Authenticate", `Bearer realm="wardbook"`)
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "authentication error")
	}
}

// writeContext collects the request facts attached to audit records.
func writeContext(r *http.Request) audit.WriteContext {
	wc := audit.WriteContext{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		SessionID: strings.TrimSpace(r.Header.Get("X-Session-Id")),
		RequestID: RequestIDFromContext(r.Context()),
	}
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		wc.UserID = actor.ID
	}
	return wc
}
