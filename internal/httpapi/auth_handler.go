package httpapi

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/navalmess/api/internal/auth"
)

var validate = validator.New()

// AuthHandler serves login, logout, and the self-service account routes.
type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

type loginRequest struct {
	NII      string `json:"nii" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token              string `json:"token"`
	NII                string `json:"nii"`
	FullName           string `json:"full_name"`
	Role               string `json:"role"`
	Year               int    `json:"year"`
	MustChangePassword bool   `json:"must_change_password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "nii and password are required")
		return
	}

	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	user, token, err := h.auth.Login(r.Context(), req.NII, req.Password, ip)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Token:              token,
		NII:                user.NII,
		FullName:           user.FullName,
		Role:               string(user.Role),
		Year:               user.Year,
		MustChangePassword: user.MustChangePassword,
	})
}

// Logout is POST-only. The identity assertion is stateless, so the session
// collaborator discards its cookie; the core acknowledges the intent.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": claims.UserID,
		"nii":     claims.NII,
		"role":    claims.Role,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=4"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "current and new password are required")
		return
	}
	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type contactsRequest struct {
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
}

func (h *AuthHandler) UpdateContacts(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req contactsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if err := h.auth.UpdateContacts(r.Context(), claims.UserID, req.Email, req.Phone); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "contacts_updated"})
}
