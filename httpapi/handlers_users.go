package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.engine.ListUsers(r.Context(), principal(r), authcore.UserQuery{
		Page:    parseIntDefault(q.Get("page"), 1),
		PerPage: parseIntDefault(q.Get("per_page"), 10),
		Search:  q.Get("search"),
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	identity, err := h.engine.GetUser(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, identity)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	identity, err := h.engine.CreateUser(r.Context(), principal(r), authcore.NewUser{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Active:        active,
		EmailVerified: req.EmailVerified,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, identity)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := h.bind(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	identity, err := h.engine.UpdateUser(r.Context(), principal(r), chi.URLParam(r, "id"), authcore.UserChanges{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Active:   req.Active,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, identity)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteUser(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted.")
}
