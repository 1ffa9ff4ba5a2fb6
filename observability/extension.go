// Package observability provides a metrics extension for tally that records
// entity, counter and ranking event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin          = (*MetricsExtension)(nil)
	_ plugin.OnInit          = (*MetricsExtension)(nil)
	_ plugin.OnEntityCreated = (*MetricsExtension)(nil)
	_ plugin.OnEntityDeleted = (*MetricsExtension)(nil)
	_ plugin.OnDeltaApplied  = (*MetricsExtension)(nil)
	_ plugin.OnTargetGone    = (*MetricsExtension)(nil)
	_ plugin.OnCounterDrift  = (*MetricsExtension)(nil)
	_ plugin.OnRankingServed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide tally metrics.
// Register it as a tally plugin to track counter and ranking traffic.
type MetricsExtension struct {
	factory MetricFactory

	// Entity metrics
	UsersCreated     Counter
	QuestionsCreated Counter
	AnswersCreated   Counter
	CommentsCreated  Counter
	EdgesCreated     Counter
	EntitiesDeleted  Counter

	// Counter metrics
	DeltasApplied   Counter
	DeltasIncrement Counter
	DeltasDecrement Counter
	TargetsGone     Counter
	CounterDrift    Counter
	DriftMagnitude  Histogram

	// Ranking metrics
	RankingsServed  Counter
	RankingResults  Histogram
	RankingLatency  Histogram
	DiscoverLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory, or app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		UsersCreated:     factory.Counter("tally.user.created"),
		QuestionsCreated: factory.Counter("tally.question.created"),
		AnswersCreated:   factory.Counter("tally.answer.created"),
		CommentsCreated:  factory.Counter("tally.comment.created"),
		EdgesCreated:     factory.Counter("tally.edge.created"),
		EntitiesDeleted:  factory.Counter("tally.entity.deleted"),

		DeltasApplied:   factory.Counter("tally.counter.deltas"),
		DeltasIncrement: factory.Counter("tally.counter.increments"),
		DeltasDecrement: factory.Counter("tally.counter.decrements"),
		TargetsGone:     factory.Counter("tally.counter.target_gone"),
		CounterDrift:    factory.Counter("tally.counter.drift"),
		DriftMagnitude:  factory.Histogram("tally.counter.drift_magnitude"),

		RankingsServed:  factory.Counter("tally.ranking.served"),
		RankingResults:  factory.Histogram("tally.ranking.results"),
		RankingLatency:  factory.Histogram("tally.ranking.latency_ms"),
		DiscoverLatency: factory.Histogram("tally.discover.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Entity hooks
// ──────────────────────────────────────────────────

// OnEntityCreated implements plugin.OnEntityCreated.
func (m *MetricsExtension) OnEntityCreated(_ context.Context, kind id.Kind, _ id.ID, _ interface{}) error {
	switch kind {
	case id.KindUser:
		m.UsersCreated.Inc()
	case id.KindQuestion:
		m.QuestionsCreated.Inc()
	case id.KindAnswer:
		m.AnswersCreated.Inc()
	case id.KindComment:
		m.CommentsCreated.Inc()
	default:
		m.EdgesCreated.Inc()
	}
	return nil
}

// OnEntityDeleted implements plugin.OnEntityDeleted.
func (m *MetricsExtension) OnEntityDeleted(_ context.Context, _ id.Kind, _ id.ID) error {
	m.EntitiesDeleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnDeltaApplied implements plugin.OnDeltaApplied.
func (m *MetricsExtension) OnDeltaApplied(_ context.Context, d counter.Delta) error {
	m.DeltasApplied.Inc()
	if d.Amount > 0 {
		m.DeltasIncrement.Inc()
	} else {
		m.DeltasDecrement.Inc()
	}
	return nil
}

// OnTargetGone implements plugin.OnTargetGone.
func (m *MetricsExtension) OnTargetGone(_ context.Context, _ counter.Delta) error {
	m.TargetsGone.Inc()
	return nil
}

// OnCounterDrift implements plugin.OnCounterDrift.
func (m *MetricsExtension) OnCounterDrift(_ context.Context, _ counter.Target, stored, actual int64) error {
	m.CounterDrift.Inc()
	diff := stored - actual
	if diff < 0 {
		diff = -diff
	}
	m.DriftMagnitude.Observe(float64(diff))
	return nil
}

// ──────────────────────────────────────────────────
// Ranking hooks
// ──────────────────────────────────────────────────

// OnRankingServed implements plugin.OnRankingServed.
func (m *MetricsExtension) OnRankingServed(_ context.Context, ranking string, _ time.Duration, results int, elapsed time.Duration) error {
	ms := float64(elapsed.Microseconds()) / 1000
	if ranking == "discover" {
		m.DiscoverLatency.Observe(ms)
		return nil
	}
	m.RankingsServed.Inc()
	m.RankingResults.Observe(float64(results))
	m.RankingLatency.Observe(ms)
	return nil
}
