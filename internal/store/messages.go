package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageExistsByProviderID reports whether a message with the given
// provider-assigned id has already been recorded. Backs delivery
// deduplication for at-least-once gateways.
func (s *Store) MessageExistsByProviderID(providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM messages WHERE provider_message_id = ?
	`, providerMessageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup provider message id: %w", err)
	}
	return true, nil
}

// InsertMessage records one turn. The unique index on
// provider_message_id is the backstop against duplicate deliveries that
// slip past the pre-check; a duplicate insert is a silent no-op that
// returns the existing id with inserted=false, so callers can detect a
// lost redelivery race and skip the turn.
func (s *Store) InsertMessage(m *Message) (id string, inserted bool, err error) {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	newID, _ := uuid.NewV7()

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO messages
			(id, conversation_id, user_id, role, content, media_url, media_type, provider_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, newID.String(), m.ConversationID, m.UserID, m.Role, m.Content,
		nullable(m.MediaURL), nullable(m.MediaType), nullable(m.ProviderMessageID), m.CreatedAt)
	if err != nil {
		return "", false, fmt.Errorf("insert message: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 && m.ProviderMessageID != "" {
		var existing string
		if err := s.db.QueryRow(`
			SELECT id FROM messages WHERE provider_message_id = ?
		`, m.ProviderMessageID).Scan(&existing); err == nil {
			return existing, false, nil
		}
	}
	return newID.String(), true, nil
}

// ConversationMessages returns the most recent messages of a
// conversation in chronological order, capped at limit.
func (s *Store) ConversationMessages(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, conversation_id, user_id, role, content, media_url, media_type, provider_message_id, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		)
		ORDER BY created_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SearchMessages performs a case-insensitive substring search over the
// user's message history, most recent first.
func (s *Store) SearchMessages(userID, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, conversation_id, user_id, role, content, media_url, media_type, provider_message_id, created_at
		FROM messages
		WHERE user_id = ? AND content LIKE '%' || ? || '%'
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		var mediaURL, mediaType, providerID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content,
			&mediaURL, &mediaType, &providerID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.MediaURL = mediaURL.String
		m.MediaType = mediaType.String
		m.ProviderMessageID = providerID.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// nullable maps "" to NULL so partial unique indexes skip empty values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
