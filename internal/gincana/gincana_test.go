package gincana

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"fitSquadAPI/internal/apperrors"
)

func TestNormalizeEndDate(t *testing.T) {
	cases := []time.Time{
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 9, 30, 12, 0, time.UTC),
		time.Date(2024, 3, 15, 23, 59, 59, 999000000, time.UTC),
	}

	for _, in := range cases {
		got := NormalizeEndDate(in)
		assert.Equal(t, 2024, got.Year())
		assert.Equal(t, time.March, got.Month())
		assert.Equal(t, 15, got.Day())
		assert.Equal(t, 23, got.Hour())
		assert.Equal(t, 59, got.Minute())
		assert.Equal(t, 59, got.Second())
		assert.Equal(t, 999000000, got.Nanosecond())
	}
}

func TestNormalizeEndDateKeepsLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	in := time.Date(2024, 7, 1, 8, 0, 0, 0, loc)

	got := NormalizeEndDate(in)

	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 1, got.Day())
}

func TestGincanaStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	running := &Gincana{IsActive: true, EndDate: now.Add(48 * time.Hour)}
	assert.Equal(t, StatusActive, running.Status(now))

	elapsed := &Gincana{IsActive: true, EndDate: now.Add(-time.Minute)}
	assert.Equal(t, StatusPendingFinalization, elapsed.Status(now))

	closed := &Gincana{IsActive: false, EndDate: now.Add(-time.Hour)}
	assert.Equal(t, StatusFinalized, closed.Status(now))

	// A deactivated row is finalized even if the clock says otherwise.
	weird := &Gincana{IsActive: false, EndDate: now.Add(time.Hour)}
	assert.Equal(t, StatusFinalized, weird.Status(now))
}

func validRequest() *CreateGincanaRequest {
	return &CreateGincanaRequest{
		PrizeDescription: "A month of free protein shakes",
		ParticipantIDs:   []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateGincanaRequestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Validate())
}

func TestValidateRejectsEmptyPrize(t *testing.T) {
	req := validRequest()
	req.PrizeDescription = "   "

	err := req.Validate()

	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateRejectsSingleParticipant(t *testing.T) {
	req := validRequest()
	req.ParticipantIDs = req.ParticipantIDs[:1]

	err := req.Validate()

	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "at least 2 participants")
}

func TestValidateRejectsDuplicateParticipants(t *testing.T) {
	req := validRequest()
	req.ParticipantIDs = append(req.ParticipantIDs, req.ParticipantIDs[0])

	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, req.Validate(), &vErr)
}

func TestValidateRejectsEndBeforeStart(t *testing.T) {
	req := validRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, -2)

	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, req.Validate(), &vErr)
}

func TestValidateAcceptsSameDayWindow(t *testing.T) {
	// Start and end on the same calendar day is fine: normalization pushes
	// the end to 23:59:59.999 which is after a midnight start.
	req := validRequest()
	req.EndDate = req.StartDate

	assert.NoError(t, req.Validate())
	assert.True(t, req.NormalizedEndDate().After(req.StartDate))
}
