// Package scoring grades quiz responses and aggregates them into score
// reports. Everything here is pure and safe for concurrent use.
package scoring

import "github.com/pavelanni/mcqgen/internal/model"

// Aggregator turns evaluated responses into a ScoreReport.
type Aggregator struct {
	observer Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver registers o to receive each report.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// NewAggregator creates an Aggregator. Without options reports are not observed.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{observer: NopObserver}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate scores responses with no observer attached.
func Aggregate(responses []model.EvaluatedResponse) model.ScoreReport {
	return NewAggregator().Aggregate(responses)
}

// Aggregate computes totals, percentages, grade and per-difficulty and
// per-taxonomy statistics. The grade is assigned from the unrounded
// percentage. An empty slice yields a zero report graded F.
func (a *Aggregator) Aggregate(responses []model.EvaluatedResponse) model.ScoreReport {
	total := len(responses)
	correct := 0
	for _, r := range responses {
		if r.IsCorrect {
			correct++
		}
	}

	raw := percent(correct, total)
	report := model.ScoreReport{
		Total:         total,
		Correct:       correct,
		Incorrect:     total - correct,
		RawPercentage: raw,
		Percentage:    Round2(raw),
		Grade:         AssignGrade(raw),
		Difficulty:    difficultyStats(responses),
		Taxonomy:      taxonomyStats(responses),
	}

	a.observer.ObserveReport(report)
	return report
}

// foldDifficulty maps unknown labels into the Medium bucket.
func foldDifficulty(d model.Difficulty) model.Difficulty {
	if d.Known() {
		return d
	}
	return model.DifficultyMedium
}

func difficultyStats(responses []model.EvaluatedResponse) map[model.Difficulty]model.BucketStats {
	stats := make(map[model.Difficulty]model.BucketStats, len(model.Difficulties))
	for _, d := range model.Difficulties {
		stats[d] = model.BucketStats{}
	}
	for _, r := range responses {
		d := foldDifficulty(r.Difficulty)
		stats[d] = tally(stats[d], r.IsCorrect)
	}
	for d, s := range stats {
		stats[d] = finish(s)
	}
	return stats
}

func taxonomyStats(responses []model.EvaluatedResponse) map[string]model.BucketStats {
	stats := make(map[string]model.BucketStats)
	for _, r := range responses {
		level := r.Taxonomy
		if level == "" {
			level = model.DefaultTaxonomy
		}
		stats[level] = tally(stats[level], r.IsCorrect)
	}
	for level, s := range stats {
		stats[level] = finish(s)
	}
	return stats
}

func tally(s model.BucketStats, correct bool) model.BucketStats {
	s.Total++
	if correct {
		s.Correct++
	}
	return s
}

func finish(s model.BucketStats) model.BucketStats {
	s.Percentage = Round2(percent(s.Correct, s.Total))
	return s
}
