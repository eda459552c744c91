package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixelfall/tagrelay/internal/progress"
)

// PrometheusSink exports relay progress metrics. It owns all collectors for
// run/request outcomes, candidate skips, and webhook deliveries.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	candidateSkips *prometheus.CounterVec
	postsTotal     *prometheus.CounterVec
	bytesDelivered prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagrelay_runs_started_total",
			Help: "Total batch runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagrelay_runs_completed_total",
			Help: "Total batch runs completed partitioned by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagrelay_requests_total",
			Help: "Search requests processed partitioned by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagrelay_request_duration_seconds",
			Help:    "Wall time per processed search request.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		candidateSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagrelay_candidate_skips_total",
			Help: "Candidates rejected by the filter partitioned by reason.",
		}, []string{"reason"}),
		postsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagrelay_posts_total",
			Help: "Webhook posts partitioned by kind (found, missing, oversize).",
		}, []string{"kind"}),
		bytesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagrelay_delivered_bytes_total",
			Help: "Total image bytes attached to webhook posts.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.requests,
		s.requestDuration,
		s.candidateSkips,
		s.postsTotal,
		s.bytesDelivered,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
	case progress.StageRequestDone:
		s.requests.WithLabelValues("done").Inc()
		s.requestDuration.WithLabelValues("done").Observe(evt.Dur.Seconds())
	case progress.StageRequestError:
		s.requests.WithLabelValues("error").Inc()
		s.requestDuration.WithLabelValues("error").Observe(evt.Dur.Seconds())
	case progress.StageCandidateSkip:
		s.candidateSkips.WithLabelValues(evt.Reason).Inc()
	case progress.StagePostDone:
		s.postsTotal.WithLabelValues("found").Inc()
		s.bytesDelivered.Add(float64(evt.Bytes))
	case progress.StagePostMissing:
		s.postsTotal.WithLabelValues("missing").Inc()
	case progress.StagePostOversize:
		s.postsTotal.WithLabelValues("oversize").Inc()
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
