// Package metrics exports scoring outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavelanni/mcqgen/internal/model"
)

const metricsNamespace = "mcqgen"

// Observer records every score report it sees. It implements scoring.Observer.
type Observer struct {
	reportsTotal    *prometheus.CounterVec
	responsesTotal  *prometheus.CounterVec
	scorePercentage prometheus.Histogram
}

// NewObserver creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "scoring",
				Name:      "reports_total",
				Help:      "Total number of scored quiz submissions by grade",
			},
			[]string{"grade"},
		),
		responsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "scoring",
				Name:      "responses_total",
				Help:      "Total evaluated responses by difficulty and outcome",
			},
			[]string{"difficulty", "outcome"},
		),
		scorePercentage: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "scoring",
				Name:      "score_percentage",
				Help:      "Distribution of raw quiz percentages",
				Buckets:   []float64{35, 60, 75, 85, 93, 100},
			},
		),
	}

	for _, c := range []prometheus.Collector{o.reportsTotal, o.responsesTotal, o.scorePercentage} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ObserveReport updates the collectors from r.
func (o *Observer) ObserveReport(r model.ScoreReport) {
	o.reportsTotal.WithLabelValues(string(r.Grade)).Inc()
	o.scorePercentage.Observe(r.RawPercentage)

	for d, s := range r.Difficulty {
		if s.Total == 0 {
			continue
		}
		o.responsesTotal.WithLabelValues(string(d), "correct").Add(float64(s.Correct))
		o.responsesTotal.WithLabelValues(string(d), "incorrect").Add(float64(s.Total - s.Correct))
	}
}
