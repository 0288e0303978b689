package gincana

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"fitSquadAPI/internal/apperrors"
)

// Status is derived from is_active plus the clock, never stored. Deriving it
// keeps the flag and the window from drifting apart.
type Status string

const (
	StatusActive              Status = "active"
	StatusPendingFinalization Status = "pending_finalization"
	StatusFinalized           Status = "finalized"
)

type Gincana struct {
	ID               uuid.UUID  `json:"id"`
	GroupID          uuid.UUID  `json:"group_id"`
	PrizeDescription string     `json:"prize_description"`
	PrizeImageURL    *string    `json:"prize_image_url,omitempty"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	CreatedBy        uuid.UUID  `json:"created_by"`
	IsActive         bool       `json:"is_active"`
	WinnerUserID     *uuid.UUID `json:"winner_user_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (g *Gincana) Status(now time.Time) Status {
	if !g.IsActive {
		return StatusFinalized
	}
	if g.EndDate.Before(now) {
		return StatusPendingFinalization
	}
	return StatusActive
}

// NormalizeEndDate pushes t to the last instant of its calendar day
// (23:59:59.999), so a gincana ending "on day D" still counts every check-in
// made during day D.
func NormalizeEndDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999*int(time.Millisecond), t.Location())
}

type CreateGincanaRequest struct {
	PrizeDescription string      `json:"prize_description"`
	ParticipantIDs   []uuid.UUID `json:"participant_ids"`
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
}

// NormalizedEndDate returns the end date the gincana will actually be stored
// and ranked with.
func (r *CreateGincanaRequest) NormalizedEndDate() time.Time {
	return NormalizeEndDate(r.EndDate)
}

func (r *CreateGincanaRequest) Validate() error {
	if strings.TrimSpace(r.PrizeDescription) == "" {
		return apperrors.NewValidation("prize description is required")
	}
	if len(r.ParticipantIDs) < 2 {
		return apperrors.NewValidation("at least 2 participants are required")
	}
	seen := make(map[uuid.UUID]struct{}, len(r.ParticipantIDs))
	for _, id := range r.ParticipantIDs {
		if id == uuid.Nil {
			return apperrors.NewValidation("participant ids must be valid user ids")
		}
		if _, dup := seen[id]; dup {
			return apperrors.NewValidation("participant ids must be unique")
		}
		seen[id] = struct{}{}
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return apperrors.NewValidation("start and end dates are required")
	}
	if !r.NormalizedEndDate().After(r.StartDate) {
		return apperrors.NewValidation("end date must be after start date")
	}
	return nil
}

// RosterEntry is one participant with display data, in roster order
// (participant insertion sequence). Roster order is the ranking tie-break.
type RosterEntry struct {
	UserID   uuid.UUID
	Username string
	ImageURL *string
}

// StandingRow is a derived ranking row. Recomputed on every query, never
// cached.
type StandingRow struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	ImageURL      *string   `json:"image_url"`
	CheckinsCount int       `json:"checkins_count"`
	Position      int       `json:"position"`
}

// WinnerRecord is the append-only audit row written when a gincana is
// finalized with a winner. Rank is always 1 for now.
type WinnerRecord struct {
	GincanaID uuid.UUID `json:"gincana_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rank      int       `json:"rank"`
}

// FinalizeResult tells the polling client whether it should render the
// "you won" or the "X won" dialog.
type FinalizeResult struct {
	IsWinner         bool   `json:"is_winner"`
	WinnerName       string `json:"winner_name"`
	PrizeDescription string `json:"prize_description"`
}

// ActiveGincanaResponse carries the live standings of the group's running
// gincana. Gincana is null when the group has none running, which is the
// normal state for most groups.
type ActiveGincanaResponse struct {
	Gincana   *Gincana       `json:"gincana"`
	Standings []*StandingRow `json:"standings,omitempty"`
}
