package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// AccountService is the user directory used by UserHandler
type AccountService interface {
	Signup(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// CredentialsRequest is the body of signup and login requests
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupResponse is returned after a successful signup
type SignupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	Token string `json:"token"`
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService AccountService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService AccountService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// Signup handles POST /auth/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to sign up")
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("User created")

	respondJSON(w, http.StatusCreated, SignupResponse{Message: "Signup successful", UserID: user.ID})
}

// Login handles POST /auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to log in")
		return
	}

	log.Info().Str("username", req.Username).Msg("User logged in")

	respondJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// DeleteAccount handles DELETE /auth/delete
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.userService.DeleteAccount(r.Context(), userID); err != nil {
		writeServiceError(w, r, err, "Failed to delete account")
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted"})
}
