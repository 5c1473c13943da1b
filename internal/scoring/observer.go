package scoring

import (
	"log/slog"

	"github.com/pavelanni/mcqgen/internal/model"
)

// Observer receives every finished report. Implementations must not modify it.
type Observer interface {
	ObserveReport(model.ScoreReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(model.ScoreReport)

// ObserveReport calls f(r).
func (f ObserverFunc) ObserveReport(r model.ScoreReport) { f(r) }

// NopObserver discards reports.
var NopObserver Observer = ObserverFunc(func(model.ScoreReport) {})

// LogObserver logs a one-line summary of each report at info level.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(r model.ScoreReport) {
		logger.Info("quiz scored",
			"total", r.Total,
			"correct", r.Correct,
			"raw_pct", r.RawPercentage,
			"pct", r.Percentage,
			"grade", r.Grade,
		)
	})
}

// MultiObserver fans a report out to each observer in order.
func MultiObserver(observers ...Observer) Observer {
	return ObserverFunc(func(r model.ScoreReport) {
		for _, o := range observers {
			if o != nil {
				o.ObserveReport(r)
			}
		}
	})
}
