package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveMemory records a free-form semantic memory for the user.
func (s *Store) SaveMemory(userID, content string) (*Memory, error) {
	if content == "" {
		return nil, fmt.Errorf("memory content is required")
	}

	now := time.Now()
	id, _ := uuid.NewV7()

	_, err := s.db.Exec(`
		INSERT INTO memories (id, user_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), userID, content, now)
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}

	return &Memory{ID: id.String(), UserID: userID, Content: content, CreatedAt: now}, nil
}

// SearchMemories performs a case-insensitive substring search over the
// user's memories, most recent first.
func (s *Store) SearchMemories(userID, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, content, created_at
		FROM memories
		WHERE user_id = ? AND content LIKE '%' || ? || '%'
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
