package models

import "time"

// MeterReading is the streaming envelope for one raw measurement: the meter
// that produced it, when it was taken, and the measurement fields exactly as
// published, before any normalization.
type MeterReading struct {
	MeterID   string    `json:"meterId"`
	Timestamp time.Time `json:"timestamp"`
	Fields    RawRecord `json:"fields"`
}

// PowerPoint is one derived result bound for the time-series store.
type PowerPoint struct {
	MeterID   string
	Timestamp time.Time
	Power     Triple
}
