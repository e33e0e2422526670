package entities_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

func TestBandFor_Boundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want entities.Band
	}{
		{0, entities.Band0},
		{19.999, entities.Band0},
		{20, entities.Band20},
		{39.9, entities.Band20},
		{40, entities.Band40},
		{59.99, entities.Band40},
		{60, entities.Band60},
		{79, entities.Band60},
		{80, entities.Band80},
		{99.99, entities.Band80},
		{100, entities.Band100},
		{150, entities.Band100},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, entities.BandFor(c.pct), "pct=%v", c.pct)
	}
}

func TestBand_NextAndValid(t *testing.T) {
	next, ok := entities.Band0.Next()
	require.True(t, ok)
	assert.Equal(t, entities.Band20, next)

	next, ok = entities.Band80.Next()
	require.True(t, ok)
	assert.Equal(t, entities.Band100, next)

	_, ok = entities.Band100.Next()
	assert.False(t, ok)

	assert.True(t, entities.Band60.Valid())
	assert.False(t, entities.Band(50).Valid())
	assert.Equal(t, "40%", entities.Band40.String())
}

func TestNewYard_RejectsInvalid(t *testing.T) {
	_, err := entities.NewYard(0, 100, 1)
	assert.Error(t, err)
	_, err = entities.NewYard(1, 0, 1)
	assert.Error(t, err)
	_, err = entities.NewYard(1, 100, -1)
	assert.Error(t, err)
	_, err = entities.NewYard(1, math.NaN(), 1)
	assert.Error(t, err)

	y, err := entities.NewYard(7, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.Band0, y.Status)
	assert.Equal(t, []entities.Band{entities.Band0}, y.StatusHistory)
}

func TestYard_CreditWork_IgnoresNonPositive(t *testing.T) {
	y, err := entities.NewYard(1, 100, 1)
	require.NoError(t, err)

	for _, s := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, changed := y.CreditWork(s)
		assert.False(t, changed)
	}
	assert.Zero(t, y.CleanedArea)
	assert.Zero(t, y.TotalWorkTime)
}

func TestYard_CreditWork_Quantization(t *testing.T) {
	cases := []struct {
		seconds float64
		want    entities.Band
	}{
		{79, entities.Band60},
		{80, entities.Band80},
		{100, entities.Band100},
	}
	for _, c := range cases {
		y, err := entities.NewYard(1, 100, 1)
		require.NoError(t, err)
		band, changed := y.CreditWork(c.seconds)
		assert.True(t, changed)
		assert.Equal(t, c.want, band)
		assert.Equal(t, c.want, y.Status)
	}
}

func TestYard_CreditWork_ClampsAndAbsorbsAfterFull(t *testing.T) {
	y, err := entities.NewYard(1, 100, 2)
	require.NoError(t, err)

	band, changed := y.CreditWork(500)
	require.True(t, changed)
	assert.Equal(t, entities.Band100, band)
	assert.Equal(t, 100.0, y.CleanedArea)
	assert.Equal(t, 500.0, y.TotalWorkTime)

	_, changed = y.CreditWork(10)
	assert.False(t, changed)
	assert.Equal(t, 100.0, y.CleanedArea)
	assert.Equal(t, 510.0, y.TotalWorkTime)
	assert.True(t, y.IsFullyCleaned())
	assert.Equal(t, 1, y.Transitions())
}

func TestYard_CreditWork_Invariants(t *testing.T) {
	y, err := entities.NewYard(3, 750, 1.3)
	require.NoError(t, err)

	prev := 0.0
	for i := 1; i <= 200; i++ {
		y.CreditWork(float64(i%7) + 0.5)

		assert.GreaterOrEqual(t, y.CleanedArea, prev)
		assert.LessOrEqual(t, y.CleanedArea, y.Area)
		assert.Equal(t, entities.BandFor(y.CompletionPercentage()), y.Status)
		prev = y.CleanedArea
	}

	for i := 1; i < len(y.StatusHistory); i++ {
		assert.Greater(t, y.StatusHistory[i], y.StatusHistory[i-1])
	}
	assert.Equal(t, y.Status, y.StatusHistory[len(y.StatusHistory)-1])
}

func TestYard_DerivedMetricsAndReset(t *testing.T) {
	y, err := entities.NewYard(1, 200, 2)
	require.NoError(t, err)
	y.CreditWork(25)

	assert.Equal(t, 150.0, y.RemainingArea())
	assert.Equal(t, 75*time.Second, y.EstimatedCompletion())
	assert.InDelta(t, 25.0, y.CompletionPercentage(), 1e-9)

	y.Reset()
	assert.Zero(t, y.CleanedArea)
	assert.Equal(t, entities.Band0, y.Status)
	assert.Equal(t, 0, y.Transitions())
}
