// Package export renders quiz sessions as JSON or PDF documents.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pavelanni/mcqgen/internal/model"
)

// ErrUnsupportedFormat is returned for formats no renderer exists for.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat maps a format name to a Format. DOCX is recognised but
// reported as unsupported.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatPDF:
		return f, nil
	case "":
		return FormatJSON, nil
	case FormatDOCX:
		return "", fmt.Errorf("%w: docx", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ParseType maps an export type name to a model.ExportType. Empty means
// questions only.
func ParseType(s string) (model.ExportType, error) {
	switch t := model.ExportType(strings.TrimSpace(s)); t {
	case model.ExportQuestionsOnly, model.ExportResults:
		return t, nil
	case "":
		return model.ExportQuestionsOnly, nil
	default:
		return "", fmt.Errorf("unknown export type %q", s)
	}
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/json"
}

// FileName returns a download name such as results_with_answers_7_20260102_150405.pdf.
func FileName(r model.ResultsExport, f Format) string {
	return fmt.Sprintf("%s_%d_%s.%s", r.Type, r.SessionID, r.GeneratedAt.Format("20060102_150405"), f)
}

// Results is the scored outcome of a session as produced by the scoring
// package. Build copies correctness from Responses rather than re-deriving it.
type Results struct {
	Responses []model.EvaluatedResponse
	Report    model.ScoreReport
	Feedback  string
}

// Build assembles the export of a session. Answers, report and feedback are
// included only for results exports with res set.
func Build(sess model.QuizSession, fileName string, typ model.ExportType, items []model.AnsweredQuestion, res *Results) model.ResultsExport {
	out := model.ResultsExport{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		FileName:    fileName,
		Type:        typ,
		GeneratedAt: time.Now(),
		Questions:   make([]model.QuestionExport, 0, len(items)),
	}

	withAnswers := typ == model.ExportResults && res != nil
	var evaluated map[string]model.EvaluatedResponse
	if withAnswers {
		evaluated = make(map[string]model.EvaluatedResponse, len(res.Responses))
		for _, ev := range res.Responses {
			evaluated[ev.QuestionID] = ev
		}
	}

	for i, it := range items {
		q := it.Question
		qe := model.QuestionExport{
			Number:     i + 1,
			Text:       q.Text,
			Options:    q.Options,
			Difficulty: q.Difficulty,
			Taxonomy:   q.Taxonomy,
		}
		if withAnswers {
			correct := evaluated[q.ID].IsCorrect
			qe.CorrectAnswer = q.CorrectAnswer
			qe.UserAnswer = it.UserAnswer
			qe.IsCorrect = &correct
			qe.Explanation = q.Explanation
		}
		out.Questions = append(out.Questions, qe)
	}

	if withAnswers {
		report := res.Report
		out.Report = &report
		out.Feedback = res.Feedback
	}
	return out
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r model.ResultsExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
