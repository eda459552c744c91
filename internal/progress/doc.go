// Package progress defines the event stream emitted by the relay pipeline.
//
// The pipeline reports milestones (run and request lifecycle, candidate
// skips, webhook posts) through the Emitter interface instead of logging
// ambiently, so behavior is observable in tests without capturing log
// output. The Hub buffers events and fans them out to sinks (structured
// logs, Prometheus) without ever blocking the emitting code path.
package progress
