package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/autoassist/car-buying-assistant/internal/auth"
	"github.com/autoassist/car-buying-assistant/internal/db"
	"github.com/autoassist/car-buying-assistant/internal/middleware"
	"github.com/autoassist/car-buying-assistant/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	users       db.UserCollection
	logger      *log.Logger
	production  bool
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, users db.UserCollection, logger *log.Logger, production bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		logger:      logger,
		production:  production,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.authService.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check if the email is already registered
	_, err := h.users.FindUserByEmail(r.Context(), req.Email)
	if err == nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		serverError(w, h.logger, h.production, err)
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := h.users.InsertUser(r.Context(), user); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusCreated, models.LoginResponse{
		Token: token,
		User:  user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		// Login still succeeds; the timestamp is informational.
		h.logger.WithError(err).Warn("failed to update last login")
	}

	writeData(w, http.StatusOK, models.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok || !principal.IsUser() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{"user": user})
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok || !principal.IsUser() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" && req.Email != user.Email {
		if err := h.authService.ValidateEmail(req.Email); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		existing, err := h.users.FindUserByEmail(r.Context(), req.Email)
		if err == nil && existing.ID.Hex() != principal.UserID {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			serverError(w, h.logger, h.production, err)
			return
		}
		user.Email = req.Email
	}

	if err := h.users.UpdateUser(r.Context(), principal.UserID, *user); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeMessage(w, http.StatusOK, "Profile updated successfully")
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok || !principal.IsUser() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.FindUserByID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newHash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	user.PasswordHash = newHash
	if err := h.users.UpdateUser(r.Context(), principal.UserID, *user); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}
