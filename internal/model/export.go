package model

import "time"

// AnsweredQuestion pairs a session question with the user's answer, which is
// empty when the question was skipped.
type AnsweredQuestion struct {
	Question   QuestionRecord
	UserAnswer Letter
}

// ResultsExport is the top-level structure for a session export.
type ResultsExport struct {
	SessionID   int64            `json:"session_id"`
	SessionName string           `json:"session_name"`
	FileName    string           `json:"file_name"`
	Type        ExportType       `json:"export_type"`
	GeneratedAt time.Time        `json:"generated_at"`
	Questions   []QuestionExport `json:"questions"`
	Report      *ScoreReport     `json:"report,omitempty"`
	Feedback    string           `json:"feedback,omitempty"`
}

// QuestionExport holds per-question data for export. Answer fields are
// omitted for questions-only exports.
type QuestionExport struct {
	Number        int               `json:"number"`
	Text          string            `json:"question_text"`
	Options       map[Letter]string `json:"options"`
	Difficulty    Difficulty        `json:"difficulty"`
	Taxonomy      string            `json:"blooms_taxonomy"`
	CorrectAnswer Letter            `json:"correct_answer,omitempty"`
	UserAnswer    Letter            `json:"user_answer,omitempty"`
	IsCorrect     *bool             `json:"is_correct,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
}
