package scoring

import (
	"math"

	"github.com/pavelanni/mcqgen/internal/model"
)

// GradeThreshold maps an inclusive lower bound on the raw percentage to a grade.
type GradeThreshold struct {
	Min   float64
	Grade model.Grade
}

// GradeThresholds is evaluated top-down; the first bound met wins. Anything
// below the last bound is an F.
var GradeThresholds = []GradeThreshold{
	{93.0, model.GradeS},
	{85.0, model.GradeA},
	{75.0, model.GradeB},
	{60.0, model.GradeC},
	{35.0, model.GradeD},
}

// AssignGrade returns the grade for an unrounded percentage. NaN is treated
// as 0.
func AssignGrade(raw float64) model.Grade {
	if math.IsNaN(raw) {
		raw = 0
	}
	for _, t := range GradeThresholds {
		if raw >= t.Min {
			return t.Grade
		}
	}
	return model.GradeF
}

// Round2 rounds x to two decimal places, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func percent(correct, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return float64(correct) / float64(total) * 100
}
