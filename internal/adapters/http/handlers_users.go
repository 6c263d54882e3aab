package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/application"
)

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	Mobile      *string `json:"mobile"`
	Avatar      *string `json:"avatar"`
	Department  *string `json:"department"`
	Position    *string `json:"position"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
}

func userIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "user_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("user_id must be a valid uuid")
	}
	return id, nil
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := userIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "get_user", err)
		return
	}

	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		writeMappedError(r.Context(), w, "get_user", err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListUsers(r.Context(), actor, paginationFromQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_users", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": page.Items,
		"total": page.Total,
		"page":  page.Page,
		"pages": page.Pages,
	})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_user", err)
		return
	}

	user, err := h.service.CreateLocalUser(r.Context(), actor, req.Username, req.Password, req.DisplayName, req.Role)
	if err != nil {
		writeMappedError(r.Context(), w, "create_user", err)
		return
	}
	writeSuccess(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := userIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "update_user", err)
		return
	}
	var req updateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_user", err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), actor, id, application.UpdateUserInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Mobile:      req.Mobile,
		Avatar:      req.Avatar,
		Department:  req.Department,
		Position:    req.Position,
		Role:        req.Role,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "update_user", err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := userIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "delete_user", err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), actor, id); err != nil {
		writeMappedError(r.Context(), w, "delete_user", err)
		return
	}
	writeMessage(w, http.StatusOK, "user deleted")
}
