// Package normalize maps the heterogeneous field names of raw measurement
// records onto the canonical vocabulary the power calculator understands.
package normalize

import (
	"fmt"
	"sort"

	"github.com/gridops/meterpower/internal/models"
)

// DefaultPowerFactor is assumed for records that carry voltage and current
// but no power factor reading.
const DefaultPowerFactor = 0.9

// Sets holds the acceptable field names for each quantity. Order matters:
// when a record carries several synonyms for the same quantity, the first
// one in declared order wins. Names are case-sensitive and used verbatim.
type Sets struct {
	Voltage     []string
	Current     []string
	PowerFactor []string
}

// DefaultSets returns the built-in vocabulary. Each canonical name leads its
// own set so that resolving an already-normalized record is a no-op.
func DefaultSets() Sets {
	return Sets{
		Voltage:     []string{models.KeyVoltage, "v", "V", "Volts", "Voltage"},
		Current:     []string{models.KeyCurrent, "i", "I", "Amps", "Amperes", "Current"},
		PowerFactor: []string{models.KeyPowerFactor, "pf", "PF", "Power Factor"},
	}
}

// Resolver canonicalizes raw records against a fixed set of synonyms.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	quantities []quantity
	known      map[string]struct{}
}

type quantity struct {
	canonical string
	synonyms  []string
}

// NewResolver builds a resolver from the given synonym sets. Every set must
// be non-empty and the three sets must be pairwise disjoint; a name claimed
// by two quantities is a configuration error, not something to resolve at
// runtime. Duplicates within one set are collapsed, keeping the first
// occurrence's position.
func NewResolver(sets Sets) (*Resolver, error) {
	r := &Resolver{known: make(map[string]struct{})}

	owners := make(map[string]string)
	for _, q := range []struct {
		canonical string
		names     []string
	}{
		{models.KeyVoltage, sets.Voltage},
		{models.KeyCurrent, sets.Current},
		{models.KeyPowerFactor, sets.PowerFactor},
	} {
		if len(q.names) == 0 {
			return nil, fmt.Errorf("synonym set for %s is empty", q.canonical)
		}
		deduped := make([]string, 0, len(q.names))
		seen := make(map[string]struct{}, len(q.names))
		for _, name := range q.names {
			if name == "" {
				return nil, fmt.Errorf("synonym set for %s contains an empty name", q.canonical)
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if owner, ok := owners[name]; ok {
				return nil, fmt.Errorf("synonym %q claimed by both %s and %s", name, owner, q.canonical)
			}
			owners[name] = q.canonical
			deduped = append(deduped, name)
			r.known[name] = struct{}{}
		}
		r.quantities = append(r.quantities, quantity{canonical: q.canonical, synonyms: deduped})
	}
	return r, nil
}

// MustResolver is NewResolver that panics on error, for use with the
// built-in default sets.
func MustResolver(sets Sets) *Resolver {
	r, err := NewResolver(sets)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve filters and canonicalizes one raw record. It returns the
// normalized record, the field names that were dropped because no quantity
// accepts them (sorted, possibly empty), and an error when fewer than two
// quantities could be resolved. The input record is never modified.
//
// Resolution policy:
//   - unrecognized keys are dropped and reported, which is not an error;
//   - per quantity, the first synonym in declared order that appears in the
//     record wins; values of losing synonyms are dropped silently, since
//     they are recognized names, just shadowed;
//   - an absent power factor defaults to DefaultPowerFactor when both
//     voltage and current resolved;
//   - fewer than two quantities after defaulting is an
//     *models.InsufficientDataError.
func (r *Resolver) Resolve(rec models.RawRecord) (models.NormalizedRecord, []string, error) {
	var ignored []string
	for key := range rec {
		if _, ok := r.known[key]; !ok {
			ignored = append(ignored, key)
		}
	}
	sort.Strings(ignored)

	normalized := make(models.NormalizedRecord, len(r.quantities))
	for _, q := range r.quantities {
		for _, name := range q.synonyms {
			if value, ok := rec[name]; ok {
				normalized[q.canonical] = value
				break
			}
		}
	}

	_, hasVoltage := normalized[models.KeyVoltage]
	_, hasCurrent := normalized[models.KeyCurrent]
	if _, ok := normalized[models.KeyPowerFactor]; !ok && hasVoltage && hasCurrent {
		normalized[models.KeyPowerFactor] = DefaultPowerFactor
	}

	if len(normalized) < 2 {
		var missing []string
		for _, q := range r.quantities {
			if _, ok := normalized[q.canonical]; !ok {
				missing = append(missing, q.canonical)
			}
		}
		return nil, ignored, &models.InsufficientDataError{Missing: missing}
	}
	return normalized, ignored, nil
}
