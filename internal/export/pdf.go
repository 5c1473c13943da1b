package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/pavelanni/mcqgen/internal/feedback"
	"github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
)

// questionsPerPage starts a new page after this many questions.
const questionsPerPage = 5

// PDF writes r as an A4 document with labels taken from loc. The core
// Helvetica font is used, so text is mapped to cp1252.
func PDF(w io.Writer, r model.ResultsExport, loc *goi18n.Localizer) error {
	if loc == nil {
		loc = i18n.NewLocalizer("en")
	}
	t := func(id string, data map[string]any) string { return i18n.Localize(loc, id, data) }

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.SessionName, true)
	pdf.AddPage()

	title := t("ReportTitleQuestions", nil)
	if r.Type == model.ExportResults {
		title = t("ReportTitleResults", nil)
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, tr(title), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	if r.SessionName != "" {
		pdf.MultiCell(0, 6, tr(t("ReportSession", map[string]any{"Name": r.SessionName})), "", "L", false)
	}
	if r.FileName != "" {
		pdf.MultiCell(0, 6, tr(t("ReportSource", map[string]any{"File": r.FileName})), "", "L", false)
	}
	pdf.MultiCell(0, 6, r.GeneratedAt.Format("2006-01-02 15:04"), "", "L", false)
	pdf.Ln(4)

	if r.Report != nil {
		writeSummary(pdf, tr, t, r)
	}

	for i, q := range r.Questions {
		if i > 0 && i%questionsPerPage == 0 {
			pdf.AddPage()
		}
		writeQuestion(pdf, tr, t, q, r.Type == model.ExportResults)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func writeSummary(pdf *gofpdf.Fpdf, tr func(string) string, t func(string, map[string]any) string, r model.ResultsExport) {
	rep := r.Report
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 7, tr(t("ReportScore", map[string]any{
		"Correct":    rep.Correct,
		"Total":      rep.Total,
		"Percentage": feedback.FormatPercent(rep.Percentage),
	})), "", "L", false)
	pdf.MultiCell(0, 7, tr(t("ReportGrade", map[string]any{"Grade": rep.Grade})), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	if r.Feedback != "" {
		pdf.MultiCell(0, 6, tr(r.Feedback), "", "L", false)
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.MultiCell(0, 6, tr(t("ReportDifficultyBreakdown", nil)), "", "L", false)
	pdf.SetFont("Helvetica", "", 11)
	for _, d := range model.Difficulties {
		s := rep.Difficulty[d]
		line := fmt.Sprintf("%s: %d / %d (%s%%)", d, s.Correct, s.Total, feedback.FormatPercent(s.Percentage))
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	pdf.Ln(6)
}

func writeQuestion(pdf *gofpdf.Fpdf, tr func(string) string, t func(string, map[string]any) string, q model.QuestionExport, withAnswers bool) {
	pdf.SetFont("Helvetica", "B", 12)
	header := t("ReportQuestionN", map[string]any{"N": q.Number})
	pdf.MultiCell(0, 7, tr(header+": "+q.Text), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range model.Letters {
		style := ""
		if withAnswers && l == q.CorrectAnswer {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%s. %s", l, q.Options[l])), "", "L", false)
	}
	pdf.SetFont("Helvetica", "", 11)

	if withAnswers {
		answer := string(q.UserAnswer)
		if answer == "" {
			answer = t("ReportNotAnswered", nil)
		}
		pdf.MultiCell(0, 6, tr(t("ReportYourAnswer", map[string]any{"Answer": answer})), "", "L", false)
		pdf.MultiCell(0, 6, tr(t("ReportCorrectAnswer", map[string]any{"Answer": q.CorrectAnswer})), "", "L", false)
		if q.Explanation != "" {
			pdf.SetFont("Helvetica", "I", 11)
			pdf.MultiCell(0, 6, tr(t("ReportExplanation", map[string]any{"Text": q.Explanation})), "", "L", false)
		}
	}
	pdf.Ln(5)
}
