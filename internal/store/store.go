package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mcqgen/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists files, chunks, questions and quiz sessions in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploaded_files (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		extracted_text TEXT NOT NULL DEFAULT '',
		processing_status TEXT NOT NULL DEFAULT 'pending',
		upload_date DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploaded_files_hash ON uploaded_files(content_hash);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		UNIQUE (file_id, idx),
		FOREIGN KEY (file_id) REFERENCES uploaded_files(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		question_text TEXT NOT NULL,
		option_a TEXT NOT NULL,
		option_b TEXT NOT NULL,
		option_c TEXT NOT NULL,
		option_d TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty_level TEXT NOT NULL DEFAULT 'Medium',
		blooms_taxonomy TEXT NOT NULL DEFAULT 'Understand',
		topic TEXT NOT NULL DEFAULT '',
		generated_date DATETIME NOT NULL,
		FOREIGN KEY (file_id) REFERENCES uploaded_files(id)
	);

	CREATE TABLE IF NOT EXISTS quiz_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		session_name TEXT NOT NULL DEFAULT '',
		total_questions INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'in_progress',
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		FOREIGN KEY (file_id) REFERENCES uploaded_files(id)
	);

	CREATE TABLE IF NOT EXISTS session_questions (
		session_id INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (session_id, question_id),
		FOREIGN KEY (session_id) REFERENCES quiz_sessions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS quiz_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		is_correct BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (session_id, question_id),
		FOREIGN KEY (session_id) REFERENCES quiz_sessions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS export_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		export_type TEXT NOT NULL,
		file_format TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES quiz_sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateFile stores an uploaded file and returns its ID. A new UUID is
// assigned when f.ID is empty.
func (s *Store) CreateFile(f model.UploadedFile, contentHash string) (string, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = model.FilePending
	}
	_, err := s.db.Exec(
		`INSERT INTO uploaded_files (id, file_name, file_type, file_size, content_hash, extracted_text, processing_status, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Type, f.Size, contentHash, f.ExtractedText, f.Status, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

const fileColumns = `id, file_name, file_type, file_size, extracted_text, processing_status, upload_date`

func scanFile(row interface{ Scan(...any) error }) (model.UploadedFile, error) {
	var f model.UploadedFile
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.Size, &f.ExtractedText, &f.Status, &f.UploadedAt)
	return f, err
}

// GetFile returns a file by ID.
func (s *Store) GetFile(id string) (model.UploadedFile, error) {
	return scanFile(s.db.QueryRow(`SELECT `+fileColumns+` FROM uploaded_files WHERE id = ?`, id))
}

// FindFileByHash returns the file previously stored with contentHash, or nil.
func (s *Store) FindFileByHash(contentHash string) (*model.UploadedFile, error) {
	f, err := scanFile(s.db.QueryRow(
		`SELECT `+fileColumns+` FROM uploaded_files WHERE content_hash = ? ORDER BY upload_date LIMIT 1`, contentHash,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFiles returns all files, newest first.
func (s *Store) ListFiles() ([]model.UploadedFile, error) {
	rows, err := s.db.Query(`SELECT ` + fileColumns + ` FROM uploaded_files ORDER BY upload_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []model.UploadedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateFileStatus updates the processing status of a file.
func (s *Store) UpdateFileStatus(id string, status model.FileStatus) error {
	_, err := s.db.Exec(`UPDATE uploaded_files SET processing_status = ? WHERE id = ?`, status, id)
	return err
}

// SaveChunks replaces the chunks stored for a file.
func (s *Store) SaveChunks(fileID string, chunks []model.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	for _, c := range chunks {
		_, err := tx.Exec(`INSERT INTO chunks (file_id, idx, text) VALUES (?, ?, ?)`, fileID, c.Index, c.Text)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChunks returns a file's chunks in order.
func (s *Store) ListChunks(fileID string) ([]model.Chunk, error) {
	rows, err := s.db.Query(`SELECT idx, text FROM chunks WHERE file_id = ? ORDER BY idx`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.Index, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// InsertQuestion stores a question and returns its ID. Missing difficulty and
// taxonomy labels get their defaults.
func (s *Store) InsertQuestion(q model.QuestionRecord) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DefaultDifficulty
	}
	if q.Taxonomy == "" {
		q.Taxonomy = model.DefaultTaxonomy
	}
	_, err := s.db.Exec(
		`INSERT INTO questions (id, file_id, question_text, option_a, option_b, option_c, option_d,
		 correct_answer, explanation, difficulty_level, blooms_taxonomy, topic, generated_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.FileID, q.Text,
		q.Options[model.LetterA], q.Options[model.LetterB], q.Options[model.LetterC], q.Options[model.LetterD],
		q.CorrectAnswer, q.Explanation, q.Difficulty, q.Taxonomy, q.Topic, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return q.ID, nil
}

const questionColumns = `id, file_id, question_text, option_a, option_b, option_c, option_d,
	correct_answer, explanation, difficulty_level, blooms_taxonomy, topic, generated_date`

func questionFields(q *model.QuestionRecord, opts *[4]string) []any {
	return []any{&q.ID, &q.FileID, &q.Text, &opts[0], &opts[1], &opts[2], &opts[3],
		&q.CorrectAnswer, &q.Explanation, &q.Difficulty, &q.Taxonomy, &q.Topic, &q.CreatedAt}
}

func setOptions(q *model.QuestionRecord, opts [4]string) {
	q.Options = map[model.Letter]string{
		model.LetterA: opts[0],
		model.LetterB: opts[1],
		model.LetterC: opts[2],
		model.LetterD: opts[3],
	}
}

func scanQuestion(row interface{ Scan(...any) error }) (model.QuestionRecord, error) {
	var q model.QuestionRecord
	var opts [4]string
	if err := row.Scan(questionFields(&q, &opts)...); err != nil {
		return q, err
	}
	setOptions(&q, opts)
	return q, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id string) (model.QuestionRecord, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// ListQuestionsByFile returns the questions generated from a file in generation order.
func (s *Store) ListQuestionsByFile(fileID string) ([]model.QuestionRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE file_id = ? ORDER BY generated_date, rowid`, fileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.QuestionRecord
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions generated from a file.
func (s *Store) QuestionCount(fileID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE file_id = ?`, fileID).Scan(&count)
	return count, err
}
