package gincana

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"fitSquadAPI/internal/checkin"
)

var (
	windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
)

func eventAt(userID uuid.UUID, at time.Time) *checkin.CheckIn {
	return &checkin.CheckIn{
		ID:         uuid.New(),
		UserID:     userID,
		OccurredAt: at,
	}
}

func TestTallyCheckinsHalfOpenWindow(t *testing.T) {
	userID := uuid.New()

	events := []*checkin.CheckIn{
		eventAt(userID, windowStart),                        // exactly at start: counts
		eventAt(userID, windowEnd),                          // exactly at end: excluded
		eventAt(userID, windowStart.Add(-time.Millisecond)), // before: excluded
		eventAt(userID, windowEnd.Add(-time.Millisecond)),   // last instant inside
	}

	counts := TallyCheckins(events, windowStart, windowEnd)

	assert.Equal(t, 2, counts[userID])
}

func TestComputeStandingsLiteralScenario(t *testing.T) {
	// Roster A, B, C. A checks in 3x inside the window, B once inside plus
	// twice outside, C never. Expected: A first with 3, B second with 1,
	// C third with 0.
	a := RosterEntry{UserID: uuid.New(), Username: "A"}
	b := RosterEntry{UserID: uuid.New(), Username: "B"}
	c := RosterEntry{UserID: uuid.New(), Username: "C"}

	events := []*checkin.CheckIn{
		eventAt(a.UserID, windowStart.Add(24*time.Hour)),
		eventAt(a.UserID, windowStart.Add(48*time.Hour)),
		eventAt(a.UserID, windowStart.Add(72*time.Hour)),
		eventAt(b.UserID, windowStart.Add(24*time.Hour)),
		eventAt(b.UserID, windowStart.Add(-24*time.Hour)),
		eventAt(b.UserID, windowEnd.Add(24*time.Hour)),
	}

	counts := TallyCheckins(events, windowStart, windowEnd)
	standings := ComputeStandings([]RosterEntry{a, b, c}, counts)

	assert.Len(t, standings, 3)

	assert.Equal(t, a.UserID, standings[0].UserID)
	assert.Equal(t, 3, standings[0].CheckinsCount)
	assert.Equal(t, 1, standings[0].Position)

	assert.Equal(t, b.UserID, standings[1].UserID)
	assert.Equal(t, 1, standings[1].CheckinsCount)
	assert.Equal(t, 2, standings[1].Position)

	assert.Equal(t, c.UserID, standings[2].UserID)
	assert.Equal(t, 0, standings[2].CheckinsCount)
	assert.Equal(t, 3, standings[2].Position)
}

func TestComputeStandingsZeroFillsWholeRoster(t *testing.T) {
	roster := make([]RosterEntry, 5)
	for i := range roster {
		roster[i] = RosterEntry{UserID: uuid.New()}
	}

	standings := ComputeStandings(roster, map[uuid.UUID]int{})

	assert.Len(t, standings, len(roster))
	seen := make(map[uuid.UUID]bool)
	for i, row := range standings {
		assert.Equal(t, 0, row.CheckinsCount)
		assert.Equal(t, i+1, row.Position)
		assert.False(t, seen[row.UserID], "user appears twice in standings")
		seen[row.UserID] = true
	}
}

func TestComputeStandingsEmptyRoster(t *testing.T) {
	standings := ComputeStandings(nil, map[uuid.UUID]int{uuid.New(): 4})
	assert.Empty(t, standings)
}

func TestComputeStandingsTieBreakKeepsRosterOrder(t *testing.T) {
	first := RosterEntry{UserID: uuid.New(), Username: "first"}
	second := RosterEntry{UserID: uuid.New(), Username: "second"}
	third := RosterEntry{UserID: uuid.New(), Username: "third"}

	counts := map[uuid.UUID]int{
		first.UserID:  2,
		second.UserID: 2,
		third.UserID:  2,
	}

	standings := ComputeStandings([]RosterEntry{first, second, third}, counts)

	assert.Equal(t, "first", standings[0].Username)
	assert.Equal(t, "second", standings[1].Username)
	assert.Equal(t, "third", standings[2].Username)
}

func TestComputeStandingsIdempotent(t *testing.T) {
	roster := []RosterEntry{
		{UserID: uuid.New(), Username: "x"},
		{UserID: uuid.New(), Username: "y"},
		{UserID: uuid.New(), Username: "z"},
	}
	counts := map[uuid.UUID]int{
		roster[0].UserID: 1,
		roster[1].UserID: 4,
	}

	once := ComputeStandings(roster, counts)
	twice := ComputeStandings(roster, counts)

	assert.Equal(t, once, twice)
}

func TestComputeStandingsMonotonic(t *testing.T) {
	// A strictly higher tally must never land on a worse position.
	roster := []RosterEntry{
		{UserID: uuid.New()},
		{UserID: uuid.New()},
		{UserID: uuid.New()},
		{UserID: uuid.New()},
	}
	counts := map[uuid.UUID]int{
		roster[0].UserID: 0,
		roster[1].UserID: 7,
		roster[2].UserID: 3,
		roster[3].UserID: 7,
	}

	standings := ComputeStandings(roster, counts)

	for _, a := range standings {
		for _, b := range standings {
			if a.CheckinsCount > b.CheckinsCount {
				assert.Less(t, a.Position, b.Position)
			}
		}
	}
}
