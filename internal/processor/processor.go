package processor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/metrics"
	"github.com/gridops/meterpower/internal/models"
	"github.com/gridops/meterpower/internal/normalize"
	"github.com/gridops/meterpower/internal/power"
)

// Resolution outcomes, used as metric labels and aggregate tags.
const (
	OutcomeResolved         = "resolved"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeMalformed        = "malformed"
	OutcomeUnavailable      = "unavailable"
)

// Sink receives everything the processor derives. *influxdb.Client is the
// production implementation.
type Sink interface {
	WritePowerPoints(points []models.PowerPoint)
	WriteOutcomeCounts(counts []models.OutcomeCount, timestamp time.Time)
	WriteIgnoredFields(counts []models.FieldCount, timestamp time.Time)
	WritePowerStats(points []models.PowerStatsPoint)
}

// Processor normalizes incoming readings and derives power from them
type Processor struct {
	sink     Sink
	resolver *normalize.Resolver
	config   config.ProcessorConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	queue    chan []models.MeterReading
	wg       sync.WaitGroup

	outcomeAggregator *outcomeAggregator
	ignoredAggregator *ignoredFieldAggregator
	statsAggregator   *powerStatsAggregator
}

// NewProcessor creates a new processor and starts its workers
func NewProcessor(sink Sink, resolver *normalize.Resolver, cfg config.ProcessorConfig, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Processor{
		sink:     sink,
		resolver: resolver,
		config:   cfg,
		metrics:  m,
		logger:   logger,
		queue:    make(chan []models.MeterReading, cfg.QueueSize),
	}

	if cfg.EnableAggregations {
		p.outcomeAggregator = newOutcomeAggregator(sink)
		p.ignoredAggregator = newIgnoredFieldAggregator(sink)
		p.statsAggregator = newPowerStatsAggregator(sink)
	}

	p.wg.Add(cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		go p.worker()
	}

	return p
}

// ProcessMessages enqueues a batch of readings for derivation. When the
// queue is full the batch is dropped with a warning rather than blocking
// the consumer.
func (p *Processor) ProcessMessages(readings []models.MeterReading) error {
	batch := make([]models.MeterReading, len(readings))
	copy(batch, readings)

	p.metrics.BatchSize.Observe(float64(len(batch)))

	select {
	case p.queue <- batch:
		return nil
	default:
		p.logger.Warn("processing queue full, dropping batch", "count", len(batch))
		return nil
	}
}

// worker derives power for batches from the queue
func (p *Processor) worker() {
	defer p.wg.Done()

	for batch := range p.queue {
		p.processBatch(batch)
	}
}

func (p *Processor) processBatch(batch []models.MeterReading) {
	start := time.Now()

	points := make([]models.PowerPoint, 0, len(batch))
	outcomes := make(map[string]int)
	ignoredFields := make(map[string]int)

	for _, reading := range batch {
		point, outcome, ignored := p.derive(reading)

		outcomes[outcome]++
		p.metrics.ReadingsProcessed.WithLabelValues(outcome).Inc()
		for _, field := range ignored {
			ignoredFields[field]++
			p.metrics.FieldsIgnored.WithLabelValues(field).Inc()
		}

		if outcome == OutcomeResolved {
			points = append(points, point)
		}
	}

	p.sink.WritePowerPoints(points)

	if p.config.EnableAggregations {
		p.outcomeAggregator.update(outcomes)
		p.ignoredAggregator.update(ignoredFields)
		p.statsAggregator.update(points)
	}

	p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
}

// derive resolves one reading and computes its power triple. It returns
// the point to store, the resolution outcome, and the field names dropped
// during normalization.
func (p *Processor) derive(reading models.MeterReading) (models.PowerPoint, string, []string) {
	if reading.Fields == nil {
		return models.PowerPoint{}, OutcomeMalformed, nil
	}

	normalized, ignored, err := p.resolver.Resolve(reading.Fields)
	if err != nil {
		return models.PowerPoint{}, OutcomeInsufficientData, ignored
	}

	triple := power.FromRecord(normalized)
	if !triple.Available() {
		return models.PowerPoint{}, OutcomeUnavailable, ignored
	}

	return models.PowerPoint{
		MeterID:   reading.MeterID,
		Timestamp: reading.Timestamp,
		Power:     triple,
	}, OutcomeResolved, ignored
}

// Stop drains the queue, stops the workers and flushes the aggregators
func (p *Processor) Stop() {
	close(p.queue)
	p.wg.Wait()

	if p.config.EnableAggregations {
		p.outcomeAggregator.stop()
		p.ignoredAggregator.stop()
		p.statsAggregator.stop()
	}
}

// outcomeAggregator aggregates resolution outcome counts
type outcomeAggregator struct {
	sink       Sink
	counts     map[string]int
	mutex      sync.Mutex
	lastUpdate time.Time
	done       chan struct{}
}

func newOutcomeAggregator(sink Sink) *outcomeAggregator {
	a := &outcomeAggregator{
		sink:       sink,
		counts:     make(map[string]int),
		lastUpdate: time.Now(),
		done:       make(chan struct{}),
	}

	go a.periodicFlush(10 * time.Second)

	return a
}

func (a *outcomeAggregator) update(outcomes map[string]int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for outcome, count := range outcomes {
		a.counts[outcome] += count
	}

	if time.Since(a.lastUpdate) > 10*time.Second {
		a.flushLocked()
	}
}

func (a *outcomeAggregator) flush() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.flushLocked()
}

func (a *outcomeAggregator) flushLocked() {
	if len(a.counts) == 0 {
		return
	}

	counts := make([]models.OutcomeCount, 0, len(a.counts))
	for outcome, count := range a.counts {
		counts = append(counts, models.OutcomeCount{
			Outcome: outcome,
			Count:   count,
		})
	}

	a.sink.WriteOutcomeCounts(counts, time.Now())

	a.counts = make(map[string]int)
	a.lastUpdate = time.Now()
}

func (a *outcomeAggregator) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *outcomeAggregator) stop() {
	close(a.done)
	a.flush()
}

// ignoredFieldAggregator aggregates dropped field counts by field name
type ignoredFieldAggregator struct {
	sink       Sink
	counts     map[string]int
	mutex      sync.Mutex
	lastUpdate time.Time
	done       chan struct{}
}

func newIgnoredFieldAggregator(sink Sink) *ignoredFieldAggregator {
	a := &ignoredFieldAggregator{
		sink:       sink,
		counts:     make(map[string]int),
		lastUpdate: time.Now(),
		done:       make(chan struct{}),
	}

	go a.periodicFlush(15 * time.Second)

	return a
}

func (a *ignoredFieldAggregator) update(fields map[string]int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for field, count := range fields {
		a.counts[field] += count
	}

	if time.Since(a.lastUpdate) > 15*time.Second {
		a.flushLocked()
	}
}

func (a *ignoredFieldAggregator) flush() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.flushLocked()
}

func (a *ignoredFieldAggregator) flushLocked() {
	if len(a.counts) == 0 {
		return
	}

	counts := make([]models.FieldCount, 0, len(a.counts))
	for field, count := range a.counts {
		counts = append(counts, models.FieldCount{
			Field: field,
			Count: count,
		})
	}

	a.sink.WriteIgnoredFields(counts, time.Now())

	a.counts = make(map[string]int)
	a.lastUpdate = time.Now()
}

func (a *ignoredFieldAggregator) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *ignoredFieldAggregator) stop() {
	close(a.done)
	a.flush()
}

// powerStatsAggregator aggregates apparent power into fixed time buckets
type powerStatsAggregator struct {
	sink           Sink
	buckets        map[time.Time]*powerStatsBucket
	mutex          sync.Mutex
	lastFlush      time.Time
	bucketDuration time.Duration
	done           chan struct{}
}

type powerStatsBucket struct {
	totalVA      float64
	readingCount int
	maxVA        float64
	minVA        float64
	timestamp    time.Time
}

func newPowerStatsAggregator(sink Sink) *powerStatsAggregator {
	a := &powerStatsAggregator{
		sink:           sink,
		buckets:        make(map[time.Time]*powerStatsBucket),
		lastFlush:      time.Now(),
		bucketDuration: 1 * time.Second,
		done:           make(chan struct{}),
	}

	go a.periodicFlush(5 * time.Second)

	return a
}

func (a *powerStatsAggregator) update(points []models.PowerPoint) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, point := range points {
		if !point.Power.Available() {
			continue
		}
		va := *point.Power.S

		bucketTime := point.Timestamp.Truncate(a.bucketDuration)
		bucket, exists := a.buckets[bucketTime]
		if !exists {
			// Seed min and max from the first value; apparent power may
			// be negative on reversed-polarity meters.
			bucket = &powerStatsBucket{
				timestamp: bucketTime,
				minVA:     va,
				maxVA:     va,
			}
			a.buckets[bucketTime] = bucket
		}

		bucket.totalVA += va
		bucket.readingCount++

		if va > bucket.maxVA {
			bucket.maxVA = va
		}
		if va < bucket.minVA {
			bucket.minVA = va
		}
	}

	// Age out closed buckets so long runs do not accumulate them.
	if time.Since(a.lastFlush) > 5*time.Second {
		a.flushOldBucketsLocked()
	}
}

func (a *powerStatsAggregator) flushOldBucketsLocked() {
	threshold := time.Now().Add(-10 * time.Second)
	points := make([]models.PowerStatsPoint, 0)

	for timestamp, bucket := range a.buckets {
		if timestamp.Before(threshold) {
			points = append(points, bucket.point())
			delete(a.buckets, timestamp)
		}
	}

	if len(points) > 0 {
		a.sink.WritePowerStats(points)
	}

	a.lastFlush = time.Now()
}

func (a *powerStatsAggregator) flush() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	points := make([]models.PowerStatsPoint, 0, len(a.buckets))
	for timestamp, bucket := range a.buckets {
		points = append(points, bucket.point())
		delete(a.buckets, timestamp)
	}

	if len(points) > 0 {
		a.sink.WritePowerStats(points)
	}
}

func (b *powerStatsBucket) point() models.PowerStatsPoint {
	return models.PowerStatsPoint{
		Timestamp:    b.timestamp,
		TotalVA:      b.totalVA,
		ReadingCount: b.readingCount,
		MaxVA:        b.maxVA,
		MinVA:        b.minVA,
		AvgVA:        b.totalVA / float64(b.readingCount),
	}
}

func (a *powerStatsAggregator) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *powerStatsAggregator) stop() {
	close(a.done)
	a.flush()
}
