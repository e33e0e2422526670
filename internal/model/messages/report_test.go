package messages_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

func TestNewReport_Valid(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	r, err := messages.NewReport(3, ts, 1.5, -2.25, 0)
	require.NoError(t, err)

	obs := r.Observation()
	assert.Equal(t, ts, obs.Timestamp)
	assert.Equal(t, entities.Position{X: 1.5, Y: -2.25}, obs.Position)
	assert.Equal(t, entities.NoYard, obs.YardID)
}

func TestNewReport_Invalid(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	_, err := messages.NewReport(0, ts, 0, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, messages.ErrInvalidRecord))

	var verr *messages.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "MachineID")

	_, err = messages.NewReport(1, time.Time{}, 0, 0, 0)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "Timestamp")

	_, err = messages.NewReport(1, ts, math.NaN(), 0, -4)
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"YardID", "X"}, verr.Fields)
}

func TestNewYardRecord(t *testing.T) {
	rec, err := messages.NewYardRecord(2, 350.5, 1.25)
	require.NoError(t, err)

	y, err := rec.Yard()
	require.NoError(t, err)
	assert.Equal(t, 2, y.ID)
	assert.Equal(t, 350.5, y.Area)

	_, err = messages.NewYardRecord(2, -1, math.Inf(1))
	var verr *messages.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"Area", "CleaningRate"}, verr.Fields)
}

func TestFrame_Kinds(t *testing.T) {
	assert.True(t, messages.EndOfStream().IsEnd())
	assert.False(t, messages.EndOfStream().IsReport())

	f := messages.ReportFrame(messages.Report{MachineID: 1})
	assert.True(t, f.IsReport())
	assert.False(t, f.IsEnd())

	var zero messages.Frame
	assert.False(t, zero.IsEnd())
	assert.False(t, zero.IsReport())
}
