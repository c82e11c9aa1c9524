package httpapi

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/mailer"
	"fieldops.lk/internal/rbac"
)

// otpVault holds pending password-change codes per user. Codes are single
// use and expire after mailer.OTPValidity.
type otpVault struct {
	mu    sync.Mutex
	codes map[string]otpRecord
}

type otpRecord struct {
	code    string
	expires time.Time
}

func newOTPVault() *otpVault {
	return &otpVault{codes: make(map[string]otpRecord)}
}

func (v *otpVault) issue(userID string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	v.mu.Lock()
	v.codes[userID] = otpRecord{code: code, expires: now.Add(mailer.OTPValidity)}
	v.mu.Unlock()
	return code, nil
}

func (v *otpVault) redeem(userID, code string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.codes[userID]
	if !ok || now.After(rec.expires) || rec.code != strings.TrimSpace(code) {
		return false
	}
	delete(v.codes, userID)
	return true
}

type passwordOTPRequest struct {
	Email string `json:"email"`
}

type passwordChangeRequest struct {
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getProfile(w, r)
	case http.MethodPatch:
		a.updateProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.users.Get(r.Context(), actor.UserID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Password changes go through the OTP flow, not the plain profile patch.
	if req.Password != nil {
		writeError(w, r, http.StatusBadRequest, "use the password endpoint to change the password")
		return
	}
	user, err := a.users.UpdateProfile(r.Context(), req.toUpdate())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

// handlePasswordOTP mails a verification code to the caller's registered
// address. The email in the request must match the directory record so a
// stolen token alone cannot redirect the code.
func (a *API) handlePasswordOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.mail == nil {
		writeError(w, r, http.StatusServiceUnavailable, "mail relay is not configured")
		return
	}
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req passwordOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.Get(r.Context(), actor.UserID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), user.Email) {
		writeError(w, r, http.StatusBadRequest, "email does not match the account")
		return
	}
	code, err := a.otp.issue(user.ID, time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "otp generation failed")
		return
	}
	if err := a.mail.SendOTP(r.Context(), user.Email, code); err != nil {
		writeError(w, r, http.StatusBadGateway, "otp delivery failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "sent",
		"valid_for": mailer.OTPValidity.String(),
		"email":     user.Email,
	})
}

func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req passwordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.otp.redeem(actor.UserID, req.OTP, time.Now().UTC()) {
		writeError(w, r, http.StatusForbidden, "invalid or expired code")
		return
	}
	if _, err := a.users.UpdateProfile(r.Context(), directory.UserUpdate{
		Password: &req.NewPassword,
	}); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
