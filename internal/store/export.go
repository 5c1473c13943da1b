package store

import (
	"time"

	"github.com/pavelanni/mcqgen/internal/model"
)

// RecordExport logs an export operation.
func (s *Store) RecordExport(rec model.ExportRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO export_history (session_id, export_type, file_format, created_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Type, rec.Format, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListExports returns the exports made for a session, oldest first.
func (s *Store) ListExports(sessionID int64) ([]model.ExportRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, export_type, file_format, created_at FROM export_history WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.ExportRecord
	for rows.Next() {
		var r model.ExportRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Type, &r.Format, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
