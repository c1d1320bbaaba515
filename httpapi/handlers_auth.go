package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// csrfCookie is a no-op body: the CSRF layer in front of it has already
// issued a cookie if the caller lacked a valid one.
func (h *Handler) csrfCookie(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authzTable(w http.ResponseWriter, r *http.Request) {
	body, err := h.engine.Table().MarshalIndent()
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	prior := middleware.SessionID(r, h.cfg.Session)
	res, err := h.engine.Login(r.Context(), authcore.LoginInput{
		Email:          req.Email,
		Password:       req.Password,
		Remember:       req.Remember,
		PriorSessionID: prior,
	})
	if err != nil {
		if prior != "" && isGateError(err) {
			middleware.ClearSessionCookie(w, h.cfg.Session)
		}
		middleware.WriteError(w, r, err)
		return
	}

	if res.RequiresSecondFactor {
		middleware.SetSessionCookie(w, h.cfg.Session, res.SessionID, false)
		middleware.WriteJSON(w, http.StatusOK, loginResponse{
			Message:          "Credentials accepted. A verification code is required.",
			RequireTwoFactor: true,
		})
		return
	}

	middleware.SetSessionCookie(w, h.cfg.Session, res.SessionID, res.Remember)
	middleware.NoteAccount(r.Context(), res.Identity.ID)
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		Message: "Welcome.",
		User:    res.Identity,
	})
}

func (h *Handler) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	p := principal(r)
	res, err := h.engine.VerifySecondFactor(r.Context(), p.Session.ID, req.Code)
	if err != nil {
		if isGateError(err) {
			middleware.ClearSessionCookie(w, h.cfg.Session)
		}
		middleware.WriteError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, h.cfg.Session, res.SessionID, res.Remember)
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		Message: "Verification succeeded.",
		User:    res.Identity,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := h.engine.Logout(r.Context(), p.Session.ID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.ClearSessionCookie(w, h.cfg.Session)
	if err := middleware.IssueCSRFCookie(w, h.engine, h.cfg); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Signed out.")
}

func isGateError(err error) bool {
	return errors.Is(err, authcore.ErrAccountDisabled) || errors.Is(err, authcore.ErrEmailNotVerified)
}
