// Package sinks ships the built-in progress.Sink implementations: structured
// logging via zap and metric export via Prometheus.
package sinks
