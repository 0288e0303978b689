package gincana

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"fitSquadAPI/internal/checkin"
)

// TallyCheckins counts ledger events per user inside the half-open window
// [start, end). Multiple check-ins on the same day all count; there is no
// daily dedup at this layer.
func TallyCheckins(events []*checkin.CheckIn, start, end time.Time) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, ev := range events {
		if ev.OccurredAt.Before(start) || !ev.OccurredAt.Before(end) {
			continue
		}
		counts[ev.UserID]++
	}
	return counts
}

// ComputeStandings builds one row per roster member (zero check-ins included)
// sorted by check-in count descending. The sort is stable, so ties keep roster
// order: whoever was added to the gincana first wins the tie. Positions are
// 1-based and consecutive. Pure and idempotent; same inputs, same output.
func ComputeStandings(roster []RosterEntry, counts map[uuid.UUID]int) []*StandingRow {
	standings := make([]*StandingRow, 0, len(roster))
	for _, member := range roster {
		standings = append(standings, &StandingRow{
			UserID:        member.UserID,
			Username:      member.Username,
			ImageURL:      member.ImageURL,
			CheckinsCount: counts[member.UserID],
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].CheckinsCount > standings[j].CheckinsCount
	})

	for i, row := range standings {
		row.Position = i + 1
	}
	return standings
}
