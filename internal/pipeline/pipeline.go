// Package pipeline runs datasets of raw measurement records through field
// normalization and power derivation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gridops/meterpower/internal/models"
	"github.com/gridops/meterpower/internal/normalize"
	"github.com/gridops/meterpower/internal/power"
)

// Engine cleans datasets and derives power results from them. Construct it
// with New; the zero value is not usable.
type Engine struct {
	resolver *normalize.Resolver
	logger   *slog.Logger
	workers  int
	failFast bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many records Compute derives concurrently.
// Values below one fall back to a single worker.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithFailFast makes Clean stop at the first record error instead of
// accumulating errors into the report.
func WithFailFast(v bool) Option {
	return func(e *Engine) { e.failFast = v }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Engine around the given resolver.
func New(resolver *normalize.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		logger:   slog.Default(),
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clean normalizes every record of the dataset in place and reports what
// happened per record. Malformed entries and records with insufficient
// data are counted as failed and recorded in the report; in fail-fast mode
// the first such error is returned instead and the dataset is left
// partially cleaned. Successfully cleaned records are replaced by their
// canonical form, so cleaning an already-clean dataset changes nothing.
func (e *Engine) Clean(ds *models.Dataset) (*models.CleaningReport, error) {
	report := models.NewCleaningReport()
	report.Total = ds.Len()

	for _, entry := range ds.Entries() {
		if entry.Malformed {
			err := &models.MalformedRecordError{ID: entry.ID}
			report.Failed++
			report.AddError(entry.ID, err)
			e.logger.Debug("record malformed", "id", entry.ID)
			if e.failFast {
				return report, err
			}
			continue
		}

		normalized, ignored, err := e.resolver.Resolve(entry.Record)
		if err != nil {
			report.Failed++
			report.AddError(entry.ID, err)
			e.logger.Debug("record not cleanable", "id", entry.ID, "error", err)
			if e.failFast {
				return report, fmt.Errorf("record %q: %w", entry.ID, err)
			}
			continue
		}

		ds.Append(entry.ID, models.RawRecord(normalized))
		report.Cleaned++
		report.AddIgnored(entry.ID, ignored)
		e.logger.Debug("record cleaned", "id", entry.ID, "ignored", len(ignored))
	}
	return report, nil
}

// Compute derives the power triple for every resolved record of a cleaned
// dataset. Records that failed cleaning, malformed entries and records
// without at least two canonical fields, get no result entry; they belong
// to the cleaning report. Resolved records whose values cannot produce a
// derivation carry the unavailable triple. Results keep dataset order;
// derivation runs on a bounded worker group.
func (e *Engine) Compute(ctx context.Context, ds *models.Dataset) (*models.ResultSet, error) {
	var entries []models.DatasetEntry
	for _, entry := range ds.Entries() {
		if entry.Malformed || !models.NormalizedRecord(entry.Record).Resolved() {
			e.logger.Debug("no result for record", "id", entry.ID)
			continue
		}
		entries = append(entries, entry)
	}

	triples := make([]models.Triple, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for slot, entry := range entries {
		slot, entry := slot, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			triples[slot] = power.FromRecord(models.NormalizedRecord(entry.Record))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := models.NewResultSet()
	for slot, entry := range entries {
		results.Append(entry.ID, triples[slot])
		if !triples[slot].Available() {
			e.logger.Debug("power unavailable", "id", entry.ID)
		}
	}
	return results, nil
}

// Run cleans the dataset and derives power for it in one pass, returning
// both the cleaning report and the results. The report is returned even
// when cleaning stops early in fail-fast mode.
func (e *Engine) Run(ctx context.Context, ds *models.Dataset) (*models.CleaningReport, *models.ResultSet, error) {
	report, err := e.Clean(ds)
	if err != nil {
		return report, nil, err
	}
	results, err := e.Compute(ctx, ds)
	if err != nil {
		return report, nil, err
	}
	return report, results, nil
}
