package models

// Canonical field names every accepted synonym maps onto. They are the only
// keys a normalized record may contain.
const (
	KeyVoltage     = "voltage"
	KeyCurrent     = "current"
	KeyPowerFactor = "power_factor"
)

// CanonicalKeys lists the canonical field names in declaration order:
// voltage, current, power factor.
func CanonicalKeys() []string {
	return []string{KeyVoltage, KeyCurrent, KeyPowerFactor}
}

// RawRecord is one measurement entry as it arrives from the outside world:
// arbitrary field names mapped to arbitrary JSON values. The resolver reads
// it and emits a filtered copy; it is never mutated.
type RawRecord map[string]any

// NormalizedRecord maps canonical field names to their resolved values.
// A key is present exactly when one of its synonyms appeared in the raw
// record, or, for power_factor, when the default was applied. Values are
// carried as found; validating that they are numeric is the power
// calculator's job.
type NormalizedRecord map[string]any

// Resolved reports whether the record satisfies the normalized-record
// invariant: at least two of the three canonical keys present.
func (r NormalizedRecord) Resolved() bool {
	present := 0
	for _, key := range CanonicalKeys() {
		if _, ok := r[key]; ok {
			present++
		}
	}
	return present >= 2
}

// Voltage returns the resolved voltage value, or nil when absent.
func (r NormalizedRecord) Voltage() any { return r[KeyVoltage] }

// Current returns the resolved current value, or nil when absent.
func (r NormalizedRecord) Current() any { return r[KeyCurrent] }

// PowerFactor returns the resolved power factor value, or nil when absent.
func (r NormalizedRecord) PowerFactor() any { return r[KeyPowerFactor] }
