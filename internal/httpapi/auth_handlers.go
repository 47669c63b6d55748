package httpapi

import (
	"errors"
	"net/http"
	"time"

	"wardbook.org/internal/auth"
	"wardbook.org/internal/token"
)

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

func pairResponse(p token.Pair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		TokenType:        "Bearer",
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, actor, err := a.accounts.Login(r.Context(), req.Email, req.Password, writeContext(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pairResponse(pair),
		"user":   actor,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, actor, err := a.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pairResponse(pair),
		"user":   actor,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, _ := auth.ActorFromContext(r.Context())
	a.accounts.Logout(r.Context(), actor, writeContext(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

func (a *API) handleVerifyEmailRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	verifyToken, expiresAt, err := a.accounts.RequestEmailVerification(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not issue verification token")
		return
	}
	// Delivery is out of band; dev and test environments read the token here.
	writeJSON(w, http.StatusOK, map[string]any{
		"verification_token": verifyToken,
		"expires_at":         expiresAt,
	})
}

func (a *API) handleVerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := a.accounts.ConfirmEmail(r.Context(), req.Token, writeContext(r))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "email verified",
		"user":   actor,
	})
}

func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resetToken, expiresAt, err := a.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		// A uniform answer keeps account existence unguessable.
		if errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrUserDeactivated) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "reset requested"})
			return
		}
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not issue reset token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reset requested",
		"reset_token": resetToken,
		"expires_at":  expiresAt,
	})
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := a.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword, writeContext(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password updated",
		"user":   actor,
	})
}
