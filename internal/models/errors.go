package models

import (
	"fmt"
	"strings"
)

// MalformedRecordError reports a dataset entry whose value is not an object
// of field names. It is fatal for that record only; neighboring records keep
// processing.
type MalformedRecordError struct {
	ID string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %q: value is not an object of measurement fields", e.ID)
}

// InsufficientDataError reports a record for which fewer than two of the
// three quantities could be resolved, even after power-factor defaulting.
// With fewer than two known quantities no meaningful power calculation is
// possible, so resolution of that record stops here.
type InsufficientDataError struct {
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least two of voltage, current and power factor, missing %s",
		strings.Join(e.Missing, ", "))
}
