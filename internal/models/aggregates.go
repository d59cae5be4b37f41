package models

import "time"

// OutcomeCount represents aggregated count of readings by resolution outcome
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// FieldCount represents aggregated count of ignored occurrences by field name
type FieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// PowerStatsPoint represents windowed apparent power statistics
type PowerStatsPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	TotalVA      float64   `json:"total_va"`
	ReadingCount int       `json:"reading_count"`
	MaxVA        float64   `json:"max_va"`
	MinVA        float64   `json:"min_va"`
	AvgVA        float64   `json:"avg_va"`
}
