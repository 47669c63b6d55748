// Package httpapi exposes the auth/audit core over HTTP. It is a thin
// consumer: all decisions live in the auth gate, the permission tables and
// the audit recorder.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"wardbook.org/internal/audit"
	"wardbook.org/internal/auth"
	"wardbook.org/internal/obs"
	"wardbook.org/internal/rbac"
)

// ReadyProbe checks readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	gate       *auth.Gate
	accounts   *auth.Service
	recorder   *audit.Recorder
	readyProbe ReadyProbe
	version    string
}

// New wires routes onto a fresh mux.
func New(gate *auth.Gate, accounts *auth.Service, recorder *audit.Recorder, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		gate:       gate,
		accounts:   accounts,
		recorder:   recorder,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.Handle("/v1/auth/logout", a.requireAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/v1/auth/me", a.requireAuth(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("/v1/auth/verify-email/request", a.requireAuth(http.HandlerFunc(a.handleVerifyEmailRequest)))
	a.mux.HandleFunc("/v1/auth/verify-email/confirm", a.handleVerifyEmailConfirm)
	a.mux.HandleFunc("/v1/auth/password-reset/request", a.handlePasswordResetRequest)
	a.mux.HandleFunc("/v1/auth/password-reset/confirm", a.handlePasswordResetConfirm)

	a.mux.Handle("/v1/audit", a.requireAuth(a.requirePermission(rbac.PermAuditRead, http.HandlerFunc(a.handleAuditList))))
	a.mux.Handle("/v1/audit/summary", a.requireAuth(a.requirePermission(rbac.PermAuditRead, http.HandlerFunc(a.handleAuditSummary))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = SecurityHeaders(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
