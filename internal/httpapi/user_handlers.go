package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/rbac"
)

type createUserRequest struct {
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     rbac.Role `json:"role"`
	Region   string    `json:"region"`
}

type updateUserRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Region       *string `json:"region"`
	Password     *string `json:"password"`
	ProfilePhoto *string `json:"profile_photo"`
}

func (r updateUserRequest) toUpdate() directory.UserUpdate {
	return directory.UserUpdate{
		Name:         r.Name,
		Email:        r.Email,
		Region:       r.Region,
		Password:     r.Password,
		ProfilePhoto: r.ProfilePhoto,
	}
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, parts[0])
		case http.MethodPatch:
			a.updateUser(w, r, parts[0])
		case http.MethodDelete:
			a.deleteUser(w, r, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "password-reset":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.resetPassword(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListVisible(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.Create(r.Context(), directory.CreateUserParams{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Region:   req.Region,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, viewOf(user))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if user.ID != actor.UserID && !rbac.CanViewUser(actor.Role, user.Role) {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.Update(r.Context(), id, req.toUpdate())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.users.Delete(r.Context(), id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.users.ResetPassword(r.Context(), id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrUsernameTaken):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, directory.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission denied")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
