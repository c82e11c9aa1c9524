package httpapi

import (
	"errors"
	"net/http"
	"time"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/rbac"
	"fieldops.lk/internal/session"
	"fieldops.lk/internal/tokens"
)

type loginRequest struct {
	Credential string `json:"credential"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

// userView is the outbound shape of a directory record, enriched with the
// role metadata clients render in headers and badges.
type userView struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         rbac.Role `json:"role"`
	RoleName     string    `json:"role_name"`
	AccessLevel  string    `json:"access_level"`
	Region       string    `json:"region,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func viewOf(u directory.User) userView {
	return userView{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		RoleName:     u.Role.Name(),
		AccessLevel:  u.Role.AccessLevel(),
		Region:       u.Region,
		ProfilePhoto: u.ProfilePhoto,
		CreatedBy:    u.CreatedBy,
		CreatedAt:    u.CreatedAt,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, user, err := a.sessions.Login(r.Context(), req.Credential, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := tokens.Generate(user.ID, user.Role, sess.ID, tokens.DefaultTTL)
	if err != nil {
		a.sessions.Logout(r.Context(), sess.ID)
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokens.DefaultTTL),
		User:      viewOf(user),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.sessions.Logout(r.Context(), sessionIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
