package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"fitSquadAPI/middleware"
	"fitSquadAPI/services"
)

const maxUploadSize = 10 << 20 // 10 MB

type CheckinHandler struct {
	checkinService *services.CheckinService
}

func NewCheckinHandler(checkinService *services.CheckinService) *CheckinHandler {
	return &CheckinHandler{
		checkinService: checkinService,
	}
}

func (h *CheckinHandler) AddCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	groupID, ok := parseGroupID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid group id")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A check-in photo is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	caption := r.FormValue("caption")

	c, err := h.checkinService.AddCheckIn(ctx, clerkID, groupID, image, header.Header.Get("Content-Type"), caption)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

func (h *CheckinHandler) GetGroupFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	groupID, ok := parseGroupID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid group id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	feed, err := h.checkinService.GetGroupFeed(ctx, clerkID, groupID, limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, feed)
}
