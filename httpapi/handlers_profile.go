package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore/middleware"
)

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, err := h.engine.Me(principal(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, identity)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	identity, err := h.engine.UpdateProfile(r.Context(), principal(r), req.Name, req.Email)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated.",
		"data":    identity,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	err := h.engine.ChangePassword(r.Context(), principal(r), req.CurrentPassword, req.Password, req.PasswordConfirmation)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated.")
}

/*
====================================
SECURITY
====================================
*/

func (h *Handler) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	setup, err := h.engine.EnableTwoFactor(r.Context(), principal(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, setup)
}

func (h *Handler) confirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.ConfirmTwoFactor(r.Context(), principal(r), req.Code); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Two-factor authentication enabled.")
}

func (h *Handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.DisableTwoFactor(r.Context(), principal(r), req.Password); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Two-factor authentication disabled.")
}

func (h *Handler) logoutOthers(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	removed, err := h.engine.LogoutOtherSessions(r.Context(), principal(r), req.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Signed out of every other device.",
		"revoked": removed,
	})
}
