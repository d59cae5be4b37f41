// Package power derives apparent, real and reactive power from normalized
// voltage, current and power factor readings.
package power

import (
	"encoding/json"
	"math"

	"github.com/gridops/meterpower/internal/models"
)

// Calculate derives the power triple from raw field values:
//
//	s = v * i        apparent power (VA)
//	p = s * pf       real power (W)
//	q = sqrt(s²-p²)  reactive power (VAR)
//
// Inputs arrive as decoded JSON values, so each one is coerced to float64
// first. The result is all-or-nothing: if any input is absent, non-numeric
// or non-finite, or the derivation would leave the real domain (pf outside
// [-1, 1] makes the radicand negative) or overflow, Calculate returns the
// unavailable Triple. It never panics and has no error to return; an
// unavailable result is a normal outcome, not a failure.
func Calculate(voltage, current, powerFactor any) models.Triple {
	v, ok := toFloat(voltage)
	if !ok {
		return models.Triple{}
	}
	i, ok := toFloat(current)
	if !ok {
		return models.Triple{}
	}
	pf, ok := toFloat(powerFactor)
	if !ok {
		return models.Triple{}
	}

	s := v * i
	p := s * pf

	rad := s*s - p*p
	if math.IsNaN(rad) || rad < 0 {
		return models.Triple{}
	}
	q := math.Sqrt(rad)

	if !finite(p) || !finite(q) || !finite(s) {
		return models.Triple{}
	}
	return models.NewTriple(p, q, s)
}

// FromRecord is Calculate applied to a normalized record's canonical fields.
func FromRecord(rec models.NormalizedRecord) models.Triple {
	return Calculate(rec.Voltage(), rec.Current(), rec.PowerFactor())
}

// toFloat coerces a decoded JSON value to a finite float64. encoding/json
// produces float64 for numbers by default and json.Number under UseNumber;
// the integer cases cover values fed in directly by callers.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, finite(v)
	case float32:
		return float64(v), finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
