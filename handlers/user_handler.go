package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/logger"
	"fitSquadAPI/internal/user"
	"fitSquadAPI/middleware"
	"fitSquadAPI/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.userService.UpdateProfileByClerkID(ctx, clerkID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteUserByClerkID(ctx, clerkID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps the service error taxonomy onto HTTP statuses.
// Validation and authorization reasons are safe to show; storage and media
// failures are logged with detail and surfaced generically.
func respondWithAppError(w http.ResponseWriter, err error) {
	var (
		validationErr     *apperrors.ValidationError
		authorizationErr  *apperrors.AuthorizationError
		authenticationErr *apperrors.AuthenticationError
		notFoundErr       *apperrors.NotFoundError
		mediaErr          *apperrors.MediaUploadError
		persistenceErr    *apperrors.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &authorizationErr):
		respondWithError(w, http.StatusForbidden, authorizationErr.Message)
	case errors.As(err, &authenticationErr):
		respondWithError(w, http.StatusUnauthorized, authenticationErr.Message)
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &mediaErr):
		logger.Errorf("media upload failed: %v", mediaErr.Err)
		respondWithError(w, http.StatusBadGateway, "Failed to store image")
	case errors.As(err, &persistenceErr):
		logger.Errorf("persistence failure: %v", persistenceErr)
		respondWithError(w, http.StatusInternalServerError, "Something went wrong")
	default:
		logger.Errorf("unhandled error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
