// Package handler maps the REST surface onto the user service and
// translates service errors into status codes and JSON error bodies.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dosquisd/testing-kubernetes/internal/model"
	"github.com/dosquisd/testing-kubernetes/internal/service"
)

const prefix = "/api/v2/users"

const (
	defaultPage  = 1
	defaultLimit = 100
)

// UserService is the service contract the transport depends on.
type UserService interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, page, limit int, search string) ([]model.User, error)
	Create(ctx context.Context, user model.UserCreate) (*model.User, error)
	Update(ctx context.Context, id int, patch model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id int) (*model.User, error)
}

// UserHandler handles HTTP requests for the users resource.
type UserHandler struct {
	svc UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// RegisterRoutes registers the users routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+prefix, h.handleList)
	mux.HandleFunc("GET "+prefix+"/{$}", h.handleList)
	mux.HandleFunc("POST "+prefix, h.handleCreate)
	mux.HandleFunc("POST "+prefix+"/{$}", h.handleCreate)
	mux.HandleFunc("GET "+prefix+"/id/{id}", h.handleGet)
	mux.HandleFunc("GET "+prefix+"/email/{email}", h.handleGetByEmail)
	mux.HandleFunc("PUT "+prefix+"/id/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE "+prefix+"/id/{id}", h.handleDelete)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := defaultPage
	if v, err := strconv.Atoi(query.Get("page")); err == nil && v > 0 {
		page = v
	}
	limit := defaultLimit
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	search := query.Get("search")

	users, err := h.svc.List(r.Context(), page, limit, search)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleGetByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")

	user, err := h.svc.GetByEmail(r.Context(), email)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var patch model.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if _, err := h.svc.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// statusFromCode maps the error body's status_code to the wire status.
// Anything unknown collapses to 500.
func statusFromCode(code int) int {
	switch code {
	case 400:
		return http.StatusBadRequest
	case 404:
		return http.StatusNotFound
	case 500:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func handleError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		writeJSON(w, statusFromCode(svcErr.StatusCode), svcErr)
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &service.Error{Message: message, StatusCode: status})
}
