package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordToolCall opens an audit row for a tool invocation and returns
// its id. Callers treat failures here as non-fatal.
func (s *Store) RecordToolCall(userID, toolName, arguments string) (string, error) {
	id, _ := uuid.NewV7()
	_, err := s.db.Exec(`
		INSERT INTO tool_calls (id, user_id, tool_name, arguments, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), userID, toolName, arguments, time.Now())
	if err != nil {
		return "", fmt.Errorf("record tool call: %w", err)
	}
	return id.String(), nil
}

// CompleteToolCall closes an audit row with the result or error text.
func (s *Store) CompleteToolCall(callID, result, errText string) error {
	now := time.Now()
	_, err := s.db.Exec(`
		UPDATE tool_calls
		SET result = ?, error = ?, completed_at = ?,
			duration_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		WHERE id = ?
	`, nullable(result), nullable(errText), now, now, callID)
	if err != nil {
		return fmt.Errorf("complete tool call: %w", err)
	}
	return nil
}

// RecentToolCalls returns the newest audit rows, most recent first.
func (s *Store) RecentToolCalls(limit int) ([]ToolCallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, tool_name, arguments, result, error, started_at, completed_at, duration_ms
		FROM tool_calls
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var records []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		var result, errText *string
		var completed *time.Time
		var duration *int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.ToolName, &r.Arguments,
			&result, &errText, &r.StartedAt, &completed, &duration); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		if result != nil {
			r.Result = *result
		}
		if errText != nil {
			r.Error = *errText
		}
		r.CompletedAt = completed
		if duration != nil {
			r.DurationMs = *duration
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
