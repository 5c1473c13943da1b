package model

import (
	"context"
	"time"
)

// Letter is a multiple-choice option key (A–D).
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
)

// Letters lists the option keys in display order.
var Letters = []Letter{LetterA, LetterB, LetterC, LetterD}

// Valid reports whether l is one of A, B, C or D.
func (l Letter) Valid() bool {
	switch l {
	case LetterA, LetterB, LetterC, LetterD:
		return true
	}
	return false
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties is the closed set of difficulty buckets, in report order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

const (
	// DefaultDifficulty is used when a question carries no difficulty label.
	DefaultDifficulty = DifficultyMedium
	// DefaultTaxonomy is used when a question carries no taxonomy level.
	DefaultTaxonomy = "Understand"
)

// Known reports whether d is one of Easy, Medium or Hard.
func (d Difficulty) Known() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Grade is a letter grade assigned from a raw percentage.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Rank orders grades so that S > A > B > C > D > F. Unknown grades rank lowest.
func (g Grade) Rank() int {
	switch g {
	case GradeS:
		return 5
	case GradeA:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	case GradeD:
		return 1
	}
	return 0
}

// Chunk is one bounded, possibly overlapping span of source text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// QuestionRecord is a generated multiple-choice question.
type QuestionRecord struct {
	ID            string            `json:"id"`
	FileID        string            `json:"file_id"`
	Text          string            `json:"question_text"`
	Options       map[Letter]string `json:"options"`
	CorrectAnswer Letter            `json:"correct_answer"`
	Explanation   string            `json:"explanation,omitempty"`
	Difficulty    Difficulty        `json:"difficulty"`
	Taxonomy      string            `json:"blooms_taxonomy"`
	Topic         string            `json:"topic,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// EvaluatedResponse is one graded answer with the question labels copied in.
type EvaluatedResponse struct {
	QuestionID    string     `json:"question_id"`
	UserAnswer    Letter     `json:"user_answer"`
	CorrectAnswer Letter     `json:"correct_answer"`
	IsCorrect     bool       `json:"is_correct"`
	QuestionText  string     `json:"question_text"`
	Explanation   string     `json:"explanation,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	Taxonomy      string     `json:"blooms_level"`
}

// BucketStats holds correct/total counts for one difficulty or taxonomy bucket.
type BucketStats struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ScoreReport is the aggregated result of a quiz submission.
type ScoreReport struct {
	Total         int                        `json:"total_questions"`
	Correct       int                        `json:"correct_answers"`
	Incorrect     int                        `json:"incorrect_answers"`
	RawPercentage float64                    `json:"raw_percentage"`
	Percentage    float64                    `json:"percentage"`
	Grade         Grade                      `json:"grade"`
	Difficulty    map[Difficulty]BucketStats `json:"difficulty_stats"`
	Taxonomy      map[string]BucketStats     `json:"blooms_stats"`
}

// FileStatus tracks processing of an uploaded file.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileFailed     FileStatus = "failed"
)

// UploadedFile is a source document and its extracted text.
type UploadedFile struct {
	ID            string     `json:"id"`
	Name          string     `json:"file_name"`
	Type          string     `json:"file_type"`
	Size          int64      `json:"file_size"`
	ExtractedText string     `json:"-"`
	Status        FileStatus `json:"processing_status"`
	UploadedAt    time.Time  `json:"upload_date"`
}

// SessionStatus represents the status of a quiz session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// QuizSession is one attempt at the questions generated from a file.
type QuizSession struct {
	ID             int64         `json:"id"`
	FileID         string        `json:"file_id"`
	Name           string        `json:"session_name"`
	TotalQuestions int           `json:"total_questions"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"start_time"`
	EndedAt        *time.Time    `json:"end_time,omitempty"`
}

// QuizResponse is a stored answer to one question in a session.
type QuizResponse struct {
	ID         int64  `json:"id"`
	SessionID  int64  `json:"session_id"`
	QuestionID string `json:"question_id"`
	UserAnswer Letter `json:"user_answer"`
	IsCorrect  bool   `json:"is_correct"`
}

// ExportType selects what an export contains.
type ExportType string

const (
	ExportQuestionsOnly ExportType = "questions_only"
	ExportResults       ExportType = "results_with_answers"
)

// ExportRecord logs one export operation.
type ExportRecord struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"session_id"`
	Type      ExportType `json:"export_type"`
	Format    string     `json:"file_format"`
	CreatedAt time.Time  `json:"created_at"`
}

// GeneratedQuestion is a question as produced by the generator, before storage.
type GeneratedQuestion struct {
	Question      string            `json:"question"`
	Options       map[Letter]string `json:"options"`
	CorrectAnswer Letter            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
	Difficulty    Difficulty        `json:"difficulty"`
	Taxonomy      string            `json:"blooms_taxonomy"`
	Topic         string            `json:"topic"`
}

// ChunkConfig holds the text segmentation parameters.
type ChunkConfig struct {
	MaxSize int
	Overlap int
}

// DefaultChunkConfig returns the stock segmentation parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{MaxSize: 1000, Overlap: 200}
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Chunk             ChunkConfig
	QuestionsPerChunk int
	Lang              string
	AdminPasswordHash []byte // bcrypt hash; nil disables admin routes
}

type userCtxKey struct{}

// ContextWithAdmin stores the authenticated admin name in the request context.
func ContextWithAdmin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, name)
}

// AdminFromContext retrieves the authenticated admin name, or "".
func AdminFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userCtxKey{}).(string)
	return u
}
