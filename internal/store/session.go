package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pavelanni/mcqgen/internal/model"
)

// ErrNoQuestions is returned when a session is started for a file that has
// no questions yet.
var ErrNoQuestions = errors.New("file has no questions")

// ErrSessionClosed is returned when completing a session that is not in progress.
var ErrSessionClosed = errors.New("session is not in progress")

// CreateSession starts a quiz session over the questions the file has now.
// The question set is pinned: questions generated later do not join it.
func (s *Store) CreateSession(fileID, name string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM questions WHERE file_id = ? ORDER BY generated_date, rowid`, fileID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, ErrNoQuestions
	}

	res, err := tx.Exec(
		`INSERT INTO quiz_sessions (file_id, session_name, total_questions, status, start_time) VALUES (?, ?, ?, ?, ?)`,
		fileID, name, len(ids), model.StatusInProgress, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	sessionID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := tx.Exec(
			`INSERT INTO session_questions (session_id, question_id, position) VALUES (?, ?, ?)`,
			sessionID, id, i,
		); err != nil {
			return 0, err
		}
	}
	return sessionID, tx.Commit()
}

const sessionColumns = `id, file_id, session_name, total_questions, status, start_time, end_time`

func scanSession(row interface{ Scan(...any) error }) (model.QuizSession, error) {
	var sess model.QuizSession
	err := row.Scan(&sess.ID, &sess.FileID, &sess.Name, &sess.TotalQuestions, &sess.Status, &sess.StartedAt, &sess.EndedAt)
	return sess, err
}

// GetSession returns a session by ID.
func (s *Store) GetSession(id int64) (model.QuizSession, error) {
	return scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`, id))
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions() ([]model.QuizSession, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM quiz_sessions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.QuizSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CompleteSession marks an in-progress session completed and stamps its end
// time. Only one caller wins; the others get ErrSessionClosed.
func (s *Store) CompleteSession(id int64) error {
	res, err := s.db.Exec(
		`UPDATE quiz_sessions SET status = ?, end_time = ? WHERE id = ? AND status = ?`,
		model.StatusCompleted, time.Now(), id, model.StatusInProgress,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetSession(id); err != nil {
			return err
		}
		return ErrSessionClosed
	}
	return nil
}

// SessionHasQuestion reports whether questionID belongs to the session's
// pinned question set.
func (s *Store) SessionHasQuestion(sessionID int64, questionID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM session_questions WHERE session_id = ? AND question_id = ?`, sessionID, questionID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RecordResponse stores an answer. Answering the same question again in a
// session replaces the earlier answer.
func (s *Store) RecordResponse(r model.QuizResponse) (int64, error) {
	_, err := s.db.Exec(
		`INSERT INTO quiz_responses (session_id, question_id, user_answer, is_correct)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET user_answer = ?, is_correct = ?`,
		r.SessionID, r.QuestionID, r.UserAnswer, r.IsCorrect, r.UserAnswer, r.IsCorrect,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM quiz_responses WHERE session_id = ? AND question_id = ?`, r.SessionID, r.QuestionID,
	).Scan(&id)
	return id, err
}

// ListResponses returns the answers recorded in a session.
func (s *Store) ListResponses(sessionID int64) ([]model.QuizResponse, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, question_id, user_answer, is_correct FROM quiz_responses WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var responses []model.QuizResponse
	for rows.Next() {
		var r model.QuizResponse
		if err := rows.Scan(&r.ID, &r.SessionID, &r.QuestionID, &r.UserAnswer, &r.IsCorrect); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// ListAnsweredQuestions returns the session's pinned questions in order
// together with the recorded answer, if any.
func (s *Store) ListAnsweredQuestions(sessionID int64) ([]model.AnsweredQuestion, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT `+sessionQuestionColumns+`, COALESCE(r.user_answer, '')
		 FROM session_questions sq
		 JOIN questions q ON q.id = sq.question_id
		 LEFT JOIN quiz_responses r ON r.session_id = sq.session_id AND r.question_id = sq.question_id
		 WHERE sq.session_id = ?
		 ORDER BY sq.position`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnsweredQuestion
	for rows.Next() {
		var (
			item model.AnsweredQuestion
			opts [4]string
		)
		dest := append(questionFields(&item.Question, &opts), &item.UserAnswer)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		setOptions(&item.Question, opts)
		out = append(out, item)
	}
	return out, rows.Err()
}

const sessionQuestionColumns = `q.id, q.file_id, q.question_text, q.option_a, q.option_b, q.option_c, q.option_d,
	q.correct_answer, q.explanation, q.difficulty_level, q.blooms_taxonomy, q.topic, q.generated_date`
