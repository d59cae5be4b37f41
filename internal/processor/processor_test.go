package processor

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/metrics"
	"github.com/gridops/meterpower/internal/models"
	"github.com/gridops/meterpower/internal/normalize"
)

// captureSink records everything the processor writes.
type captureSink struct {
	mu       sync.Mutex
	points   []models.PowerPoint
	outcomes map[string]int
	ignored  map[string]int
	stats    []models.PowerStatsPoint
}

func newCaptureSink() *captureSink {
	return &captureSink{
		outcomes: make(map[string]int),
		ignored:  make(map[string]int),
	}
}

func (s *captureSink) WritePowerPoints(points []models.PowerPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
}

func (s *captureSink) WriteOutcomeCounts(counts []models.OutcomeCount, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counts {
		s.outcomes[c.Outcome] += c.Count
	}
}

func (s *captureSink) WriteIgnoredFields(counts []models.FieldCount, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counts {
		s.ignored[c.Field] += c.Count
	}
}

func (s *captureSink) WritePowerStats(points []models.PowerStatsPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, points...)
}

func newTestProcessor(t *testing.T, sink Sink, cfg config.ProcessorConfig) (*Processor, *metrics.Metrics) {
	t.Helper()
	r, err := normalize.NewResolver(normalize.DefaultSets())
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	return NewProcessor(sink, r, cfg, m, nil), m
}

func TestProcessorDerivesBatch(t *testing.T) {
	sink := newCaptureSink()
	p, m := newTestProcessor(t, sink, config.ProcessorConfig{
		WorkerCount:        2,
		QueueSize:          16,
		EnableAggregations: true,
	})

	now := time.Now()
	readings := []models.MeterReading{
		{MeterID: "m1", Timestamp: now, Fields: models.RawRecord{
			"Volts": 120.0, "Amps": 10.0, "Power Factor": 0.8, "zone": "b2",
		}},
		{MeterID: "m2", Timestamp: now, Fields: models.RawRecord{"pf": 0.9}},
		{MeterID: "m3", Timestamp: now},
		{MeterID: "m4", Timestamp: now, Fields: models.RawRecord{"v": "abc", "i": 5.0}},
	}

	require.NoError(t, p.ProcessMessages(readings))
	p.Stop()

	require.Len(t, sink.points, 1)
	point := sink.points[0]
	assert.Equal(t, "m1", point.MeterID)
	assert.Equal(t, 960.0, *point.Power.P)
	assert.Equal(t, 720.0, *point.Power.Q)
	assert.Equal(t, 1200.0, *point.Power.S)

	assert.Equal(t, map[string]int{
		OutcomeResolved:         1,
		OutcomeInsufficientData: 1,
		OutcomeMalformed:        1,
		OutcomeUnavailable:      1,
	}, sink.outcomes)
	assert.Equal(t, map[string]int{"zone": 1}, sink.ignored)

	require.Len(t, sink.stats, 1)
	assert.Equal(t, 1, sink.stats[0].ReadingCount)
	assert.Equal(t, 1200.0, sink.stats[0].TotalVA)
	assert.Equal(t, 1200.0, sink.stats[0].AvgVA)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsProcessed.WithLabelValues(OutcomeResolved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsProcessed.WithLabelValues(OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsIgnored.WithLabelValues("zone")))
}

func TestProcessorDropsWhenQueueFull(t *testing.T) {
	sink := newCaptureSink()
	// No workers and no buffer, so nothing can be enqueued.
	p, _ := newTestProcessor(t, sink, config.ProcessorConfig{
		WorkerCount: 0,
		QueueSize:   0,
	})

	err := p.ProcessMessages([]models.MeterReading{
		{MeterID: "m1", Fields: models.RawRecord{"v": 1.0, "i": 2.0}},
	})
	assert.NoError(t, err)

	p.Stop()
	assert.Empty(t, sink.points)
}

func TestProcessorWithoutAggregations(t *testing.T) {
	sink := newCaptureSink()
	p, _ := newTestProcessor(t, sink, config.ProcessorConfig{
		WorkerCount: 1,
		QueueSize:   4,
	})

	require.NoError(t, p.ProcessMessages([]models.MeterReading{
		{MeterID: "m1", Timestamp: time.Now(), Fields: models.RawRecord{"v": 230.0, "i": 5.0}},
	}))
	p.Stop()

	require.Len(t, sink.points, 1)
	assert.Equal(t, 1150.0, *sink.points[0].Power.S)
	assert.Empty(t, sink.outcomes)
	assert.Empty(t, sink.stats)
}
