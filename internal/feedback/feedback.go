// Package feedback turns a score report into a short message for the learner.
package feedback

import (
	"strconv"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
)

// HardStruggleThreshold is the Hard-bucket percentage below which the
// review nudge is appended.
const HardStruggleThreshold = 50.0

var gradeMessages = map[model.Grade]string{
	model.GradeS: "FeedbackGradeS",
	model.GradeA: "FeedbackGradeA",
	model.GradeB: "FeedbackGradeB",
	model.GradeC: "FeedbackGradeC",
	model.GradeD: "FeedbackGradeD",
	model.GradeF: "FeedbackGradeF",
}

// Composer renders feedback in one language. It holds no mutable state.
type Composer struct {
	loc *goi18n.Localizer
}

// NewComposer creates a Composer for lang, falling back to English.
func NewComposer(lang string) *Composer {
	return &Composer{loc: appI18n.NewLocalizer(lang, "en")}
}

// NewComposerWithLocalizer creates a Composer around an existing localizer.
func NewComposerWithLocalizer(loc *goi18n.Localizer) *Composer {
	return &Composer{loc: loc}
}

// Compose picks the message for the report's grade and fills in the display
// percentage. The grade is taken from the report as is.
func (c *Composer) Compose(r model.ScoreReport) string {
	msgID, ok := gradeMessages[r.Grade]
	if !ok {
		msgID = gradeMessages[model.GradeF]
	}
	grade := r.Grade
	if grade == "" {
		grade = model.GradeF
	}

	msg := appI18n.Localize(c.loc, msgID, map[string]any{
		"Percentage": FormatPercent(r.Percentage),
		"Grade":      string(grade),
	})

	if hard, ok := r.Difficulty[model.DifficultyHard]; ok && hard.Total > 0 && hard.Percentage < HardStruggleThreshold {
		msg += " " + appI18n.Localize(c.loc, "FeedbackHardStruggle", nil)
	}
	return msg
}

// FormatPercent prints p with at least one decimal place: 90 → "90.0",
// 87.5 → "87.5", 66.67 → "66.67".
func FormatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
