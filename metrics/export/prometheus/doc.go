// Package prometheus exposes authcore metrics as a prometheus.Collector.
//
// The collector reads Engine.MetricsSnapshot on every scrape; it keeps no
// state of its own. Histogram sums are not tracked by the engine and are
// reported as zero.
package prometheus
