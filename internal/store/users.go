package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUserByPhone returns the user owning the given phone
// number, creating the row on first contact.
func (s *Store) GetOrCreateUserByPhone(phone string) (*User, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}

	now := time.Now()
	id, _ := uuid.NewV7()

	// Insert-if-absent; the unique index on phone makes this race-safe.
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO users (id, phone, created_at)
		VALUES (?, ?, ?)
	`, id.String(), phone, now)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.userByQuery(`SELECT id, phone, name, system_prompt, model, bot_mode, created_at FROM users WHERE phone = ?`, phone)
}

// GetUser returns a user by id, or nil if not found.
func (s *Store) GetUser(userID string) (*User, error) {
	u, err := s.userByQuery(`SELECT id, phone, name, system_prompt, model, bot_mode, created_at FROM users WHERE id = ?`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UpdateUserSettings stores the user's worker preferences. Empty
// strings clear the corresponding setting.
func (s *Store) UpdateUserSettings(userID, systemPrompt, model, botMode string) error {
	res, err := s.db.Exec(`
		UPDATE users SET system_prompt = ?, model = ?, bot_mode = ? WHERE id = ?
	`, nullable(systemPrompt), nullable(model), nullable(botMode), userID)
	if err != nil {
		return fmt.Errorf("update user settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

func (s *Store) userByQuery(query string, arg any) (*User, error) {
	row := s.db.QueryRow(query, arg)

	var u User
	var phone, name, prompt, model, mode sql.NullString
	if err := row.Scan(&u.ID, &phone, &name, &prompt, &model, &mode, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Phone = phone.String
	u.Name = name.String
	u.SystemPrompt = prompt.String
	u.Model = model.String
	u.BotMode = mode.String
	return &u, nil
}
