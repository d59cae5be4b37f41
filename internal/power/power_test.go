package power

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterpower/internal/models"
)

func TestCalculate(t *testing.T) {
	got := Calculate(120.0, 10.0, 0.8)
	require.True(t, got.Available())
	assert.Equal(t, 960.0, *got.P)
	assert.Equal(t, 720.0, *got.Q)
	assert.Equal(t, 1200.0, *got.S)
}

func TestCalculateDefaultPowerFactor(t *testing.T) {
	got := Calculate(230.0, 5.0, 0.9)
	require.True(t, got.Available())
	assert.Equal(t, 1035.0, *got.P)
	assert.InDelta(t, 501.2733, *got.Q, 1e-4)
	assert.Equal(t, 1150.0, *got.S)
}

func TestCalculateUnitPowerFactor(t *testing.T) {
	// pf = 1 means purely real power; the radicand is exactly zero.
	got := Calculate(100.0, 2.0, 1.0)
	require.True(t, got.Available())
	assert.Equal(t, 200.0, *got.P)
	assert.Equal(t, 0.0, *got.Q)
	assert.Equal(t, 200.0, *got.S)
}

func TestCalculateUnavailable(t *testing.T) {
	for name, tc := range map[string]struct {
		v, i, pf any
	}{
		"nil voltage":         {nil, 5.0, 0.9},
		"nil current":         {120.0, nil, 0.9},
		"nil power factor":    {120.0, 5.0, nil},
		"string voltage":      {"abc", 5.0, 0.9},
		"bool current":        {120.0, true, 0.9},
		"object voltage":      {map[string]any{"val": 120.0}, 5.0, 0.9},
		"pf above one":        {120.0, 10.0, 1.5},
		"pf below minus one":  {120.0, 10.0, -1.5},
		"nan voltage":         {math.NaN(), 10.0, 0.9},
		"inf current":         {120.0, math.Inf(1), 0.9},
		"overflowing product": {math.MaxFloat64, math.MaxFloat64, 0.9},
	} {
		t.Run(name, func(t *testing.T) {
			got := Calculate(tc.v, tc.i, tc.pf)
			assert.False(t, got.Available())
			assert.Nil(t, got.P)
			assert.Nil(t, got.Q)
			assert.Nil(t, got.S)
		})
	}
}

func TestCalculateOverflowingSquare(t *testing.T) {
	// v*i stays finite but s² does not; the result must stay unavailable
	// rather than carry an infinite reactive power.
	got := Calculate(1e200, 1.0, 0.0)
	assert.False(t, got.Available())
}

func TestCalculateNegativeReadings(t *testing.T) {
	// Reversed polarity is legitimate: s = v*i may be negative and the
	// radicand s²-p² is unaffected by sign.
	got := Calculate(-120.0, 10.0, 0.8)
	require.True(t, got.Available())
	assert.Equal(t, -1200.0, *got.S)
	assert.Equal(t, -960.0, *got.P)
	assert.Equal(t, 720.0, *got.Q)

	// A leading power factor stays inside [-1, 1] and flips p only.
	got = Calculate(120.0, 10.0, -0.8)
	require.True(t, got.Available())
	assert.Equal(t, 1200.0, *got.S)
	assert.Equal(t, -960.0, *got.P)
	assert.Equal(t, 720.0, *got.Q)
}

func TestCalculateCoercesIntegers(t *testing.T) {
	got := Calculate(120, int64(10), float32(0.5))
	require.True(t, got.Available())
	assert.Equal(t, 1200.0, *got.S)
	assert.Equal(t, 600.0, *got.P)
}

func TestCalculateCoercesJSONNumber(t *testing.T) {
	got := Calculate(json.Number("120"), json.Number("10"), json.Number("0.8"))
	require.True(t, got.Available())
	assert.Equal(t, 960.0, *got.P)

	got = Calculate(json.Number("not a number"), json.Number("10"), json.Number("0.8"))
	assert.False(t, got.Available())
}

func TestFromRecord(t *testing.T) {
	rec := models.NormalizedRecord{
		models.KeyVoltage:     120.0,
		models.KeyCurrent:     10.0,
		models.KeyPowerFactor: 0.8,
	}
	got := FromRecord(rec)
	require.True(t, got.Available())
	assert.Equal(t, 1200.0, *got.S)

	missing := models.NormalizedRecord{
		models.KeyVoltage:     120.0,
		models.KeyPowerFactor: 0.9,
	}
	assert.False(t, FromRecord(missing).Available())
}
