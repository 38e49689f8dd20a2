// Package otel registers OpenTelemetry observable instruments for authcore
// metrics. One callback reads Engine.MetricsSnapshot per collection; the
// caller owns the MeterProvider.
package otel
