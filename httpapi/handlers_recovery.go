package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

const genericRecoveryMessage = "If the address is registered, a message has been sent."

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	identity, err := h.engine.Register(r.Context(), authcore.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Confirmation: req.PasswordConfirmation,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.NoteAccount(r.Context(), identity.ID)
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. Check your inbox to verify your e-mail address.",
		"user":    identity,
	})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.VerifyEmail(r.Context(), req.Token); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "E-mail address verified.")
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.ResendVerification(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, genericRecoveryMessage)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, genericRecoveryMessage)
}

func (h *Handler) verifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req verifyResetRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.engine.VerifyResetToken(r.Context(), req.Email, req.Token); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"message": "Token is valid.",
	})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	err := h.engine.ResetPassword(r.Context(), authcore.ResetInput{
		Email:        req.Email,
		Token:        req.Token,
		Password:     req.Password,
		Confirmation: req.PasswordConfirmation,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Your password has been reset.")
}
