package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the business counters. The zero value of *Metrics is not
// usable; use NewMetrics or NoopMetrics.
type Metrics struct {
	creditsSelected  metric.Int64Counter
	creditsExhausted metric.Int64Counter
	executions       metric.Int64Counter
	transitions      metric.Int64Counter
	sweepItems       metric.Int64Counter
}

// NewMetrics registers the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error
	if m.creditsSelected, err = meter.Int64Counter("credits.selected",
		metric.WithDescription("Credit sources chosen for executions")); err != nil {
		return nil, err
	}
	if m.creditsExhausted, err = meter.Int64Counter("credits.exhausted",
		metric.WithDescription("Execution requests rejected for lack of credits")); err != nil {
		return nil, err
	}
	if m.executions, err = meter.Int64Counter("executions.total",
		metric.WithDescription("Completed execution attempts")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("subscriptions.transitions",
		metric.WithDescription("Subscription state changes")); err != nil {
		return nil, err
	}
	if m.sweepItems, err = meter.Int64Counter("sweeps.items",
		metric.WithDescription("Items processed by background sweeps")); err != nil {
		return nil, err
	}
	return &m, nil
}

// NoopMetrics returns counters that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *Metrics) sourceSelected(ctx context.Context, source string) {
	m.creditsSelected.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) exhausted(ctx context.Context) {
	m.creditsExhausted.Add(ctx, 1)
}

func (m *Metrics) execution(ctx context.Context, language, status string) {
	m.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("status", status),
	))
}

func (m *Metrics) transition(ctx context.Context, kind string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) sweepItem(ctx context.Context, sweep, outcome string) {
	m.sweepItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sweep", sweep),
		attribute.String("outcome", outcome),
	))
}
