package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fitSquadAPI/internal/group"
	"fitSquadAPI/middleware"
	"fitSquadAPI/services"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// parseGroupID pulls the {groupID} path variable. Shared by the group,
// check-in and gincana handlers.
func parseGroupID(r *http.Request) (uuid.UUID, bool) {
	raw, ok := mux.Vars(r)["groupID"]
	if !ok {
		return uuid.Nil, false
	}
	groupID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return groupID, true
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req group.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.groupService.CreateGroup(ctx, clerkID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req group.JoinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.groupService.JoinGroup(ctx, clerkID, req.InviteCode)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) GetUserGroups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	groups, err := h.groupService.GetUserGroups(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) GetMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	groupID, ok := parseGroupID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid group id")
		return
	}

	members, err := h.groupService.GetMembers(ctx, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, members)
}

func (h *GroupHandler) GetInviteQR(w http.ResponseWriter, r *http.Request) {
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

	qr, err := h.groupService.GenerateInviteQR(ctx, clerkID, groupID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, qr)
}

func (h *GroupHandler) GetGroupRanking(w http.ResponseWriter, r *http.Request) {
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

	period := r.URL.Query().Get("period")

	ranking, err := h.groupService.GetGroupRanking(ctx, clerkID, groupID, period)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ranking)
}
