package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitSquadAPI/internal/gincana"
	"fitSquadAPI/middleware"
	"fitSquadAPI/services"
)

type GincanaHandler struct {
	gincanaService *services.GincanaService
}

func NewGincanaHandler(gincanaService *services.GincanaService) *GincanaHandler {
	return &GincanaHandler{
		gincanaService: gincanaService,
	}
}

// CreateGincana takes a multipart form: prize_description, participant_ids
// (comma separated user ids), start_date, end_date and an optional
// prize_image file.
func (h *GincanaHandler) CreateGincana(w http.ResponseWriter, r *http.Request) {
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

	req := &gincana.CreateGincanaRequest{
		PrizeDescription: r.FormValue("prize_description"),
	}

	for _, raw := range strings.Split(r.FormValue("participant_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid participant id: "+raw)
			return
		}
		req.ParticipantIDs = append(req.ParticipantIDs, id)
	}

	startDate, ok := parseDate(r.FormValue("start_date"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid start_date")
		return
	}
	endDate, ok := parseDate(r.FormValue("end_date"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid end_date")
		return
	}
	req.StartDate = startDate
	req.EndDate = endDate

	var prizeImage []byte
	var imageContentType string
	if file, header, err := r.FormFile("prize_image"); err == nil {
		defer file.Close()
		prizeImage, err = io.ReadAll(file)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to read prize image")
			return
		}
		imageContentType = header.Header.Get("Content-Type")
	}

	g, err := h.gincanaService.CreateGincana(ctx, clerkID, groupID, req, prizeImage, imageContentType)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, g)
}

func (h *GincanaHandler) GetActiveGincana(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetClerkID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	groupID, ok := parseGroupID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid group id")
		return
	}

	resp, err := h.gincanaService.GetActiveGincana(ctx, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// FinalizeGincana is polled by clients on session start. A null body means
// there was nothing to finalize.
func (h *GincanaHandler) FinalizeGincana(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
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

	result, err := h.gincanaService.FinalizeIfElapsed(ctx, clerkID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
