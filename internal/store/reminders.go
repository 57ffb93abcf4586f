package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateReminder inserts a reminder. Title and due time are required;
// recurrence defaults to none.
func (s *Store) CreateReminder(r *Reminder) (*Reminder, error) {
	if r.Title == "" {
		return nil, fmt.Errorf("reminder title is required")
	}
	if r.DueAt.IsZero() {
		return nil, fmt.Errorf("reminder due time is required")
	}
	if r.Recurrence == "" {
		r.Recurrence = RecurrenceNone
	}
	switch r.Recurrence {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly:
	case RecurrenceCustom:
		if r.RecurrenceInterval <= 0 || r.RecurrenceUnit == "" {
			return nil, fmt.Errorf("custom recurrence requires interval and unit")
		}
	default:
		return nil, fmt.Errorf("unknown recurrence %q", r.Recurrence)
	}

	now := time.Now()
	id, _ := uuid.NewV7()

	_, err := s.db.Exec(`
		INSERT INTO reminders
			(id, user_id, title, due_at, recurrence, recurrence_interval, recurrence_unit, recurrence_count, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
	`, id.String(), r.UserID, r.Title, r.DueAt, r.Recurrence,
		zeroToNil(r.RecurrenceInterval), nullable(r.RecurrenceUnit), zeroToNil(r.RecurrenceCount), now)
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	r.ID = id.String()
	r.Status = "pending"
	r.CreatedAt = now
	return r, nil
}

// UrgentReminders returns up to limit pending reminders due within the
// given window, soonest first.
func (s *Store) UrgentReminders(userID string, within time.Duration, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 5
	}
	cutoff := time.Now().Add(within)

	rows, err := s.db.Query(`
		SELECT id, user_id, title, due_at, recurrence, recurrence_interval, recurrence_unit, recurrence_count, status, created_at
		FROM reminders
		WHERE user_id = ? AND status = 'pending' AND due_at <= ?
		ORDER BY due_at ASC
		LIMIT ?
	`, userID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		var interval, count *int
		var unit *string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.DueAt, &r.Recurrence,
			&interval, &unit, &count, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		if interval != nil {
			r.RecurrenceInterval = *interval
		}
		if unit != nil {
			r.RecurrenceUnit = *unit
		}
		if count != nil {
			r.RecurrenceCount = *count
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func zeroToNil(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
