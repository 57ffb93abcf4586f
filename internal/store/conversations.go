package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActiveConversation returns the active conversation for the thread, or
// nil when none exists.
func (s *Store) ActiveConversation(userID, threadID string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, thread_id, status, last_message_at, created_at
		FROM conversations
		WHERE user_id = ? AND thread_id = ? AND status = 'active'
	`, userID, threadID)

	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.ThreadID, &c.Status, &c.LastMessageAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// CreateActiveConversation inserts a fresh active conversation for the
// thread. Under concurrent first-message deliveries only one insert can
// win the partial unique index; the loser's insert is a no-op and the
// winner's row is returned to both callers.
func (s *Store) CreateActiveConversation(userID, threadID string) (*Conversation, error) {
	now := time.Now()
	id, _ := uuid.NewV7()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversations (id, user_id, thread_id, status, last_message_at, created_at)
		VALUES (?, ?, ?, 'active', ?, ?)
	`, id.String(), userID, threadID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conv, err := s.ActiveConversation(userID, threadID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		// The winner archived itself between our insert and re-query.
		// Extremely unlikely; treat as a retriable race.
		return nil, fmt.Errorf("active conversation vanished after insert for thread %s", threadID)
	}
	return conv, nil
}

// TouchConversation refreshes last_message_at on an active conversation.
func (s *Store) TouchConversation(conversationID string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE conversations SET last_message_at = ? WHERE id = ?
	`, at, conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ArchiveConversation marks a conversation archived. Archived rows are
// never deleted.
func (s *Store) ArchiveConversation(conversationID string) error {
	_, err := s.db.Exec(`
		UPDATE conversations SET status = 'archived' WHERE id = ?
	`, conversationID)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	return nil
}

// CountActiveConversations reports how many active rows exist for the
// thread. Used by tests to assert the one-active-session invariant.
func (s *Store) CountActiveConversations(userID, threadID string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM conversations
		WHERE user_id = ? AND thread_id = ? AND status = 'active'
	`, userID, threadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}
