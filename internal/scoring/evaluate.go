package scoring

import "github.com/pavelanni/mcqgen/internal/model"

// Evaluate grades one answer against its question. Correctness is strict
// equality of option letters; an empty answer is never correct. The
// question's text, explanation and labels are copied into the result so
// aggregation needs no further lookups.
func Evaluate(userAnswer, correctAnswer model.Letter, q model.QuestionRecord) model.EvaluatedResponse {
	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = model.DefaultDifficulty
	}
	taxonomy := q.Taxonomy
	if taxonomy == "" {
		taxonomy = model.DefaultTaxonomy
	}

	return model.EvaluatedResponse{
		QuestionID:    q.ID,
		UserAnswer:    userAnswer,
		CorrectAnswer: correctAnswer,
		IsCorrect:     userAnswer != "" && userAnswer == correctAnswer,
		QuestionText:  q.Text,
		Explanation:   q.Explanation,
		Difficulty:    difficulty,
		Taxonomy:      taxonomy,
	}
}
