package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Checkbox markers for checklist lines.
const (
	markerOpen = "[ ]"
	markerDone = "[x]"
)

// ChecklistLine formats one checklist entry.
func ChecklistLine(content string) string {
	return fmt.Sprintf("- %s %s", markerOpen, content)
}

// CreateTask inserts a task. For checklists, items holds the initial
// entries, one checkbox line each.
func (s *Store) CreateTask(userID, title string, items []string, isChecklist bool) (*Task, error) {
	now := time.Now()
	id, _ := uuid.NewV7()

	var content string
	if isChecklist {
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = ChecklistLine(it)
		}
		content = strings.Join(lines, "\n")
	} else {
		content = strings.Join(items, "\n")
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, user_id, title, content, is_checklist, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'open', ?, ?)
	`, id.String(), userID, title, content, isChecklist, now, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return &Task{
		ID:          id.String(),
		UserID:      userID,
		Title:       title,
		Content:     content,
		IsChecklist: isChecklist,
		Status:      "open",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetTask returns a task by id scoped to the user, or nil.
func (s *Store) GetTask(userID, taskID string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, title, content, is_checklist, status, created_at, updated_at
		FROM tasks WHERE id = ? AND user_id = ?
	`, taskID, userID)
	return scanTask(row)
}

// AppendChecklistItem adds one checkbox line to a checklist task.
func (s *Store) AppendChecklistItem(userID, taskID, content string) error {
	task, err := s.GetTask(userID, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}

	updated := task.Content
	if updated != "" {
		updated += "\n"
	}
	updated += ChecklistLine(content)

	_, err = s.db.Exec(`
		UPDATE tasks SET content = ?, updated_at = ? WHERE id = ?
	`, updated, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("append checklist item: %w", err)
	}
	return nil
}

// ToggleChecklistItem finds the first line containing the given text
// (case-insensitive) and flips its checkbox marker. A missing match is
// a signaled error, never a silent no-op.
func (s *Store) ToggleChecklistItem(userID, taskID, itemText string) error {
	task, err := s.GetTask(userID, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}

	needle := strings.ToLower(strings.TrimSpace(itemText))
	lines := strings.Split(task.Content, "\n")
	found := false
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		switch {
		case strings.Contains(line, markerDone):
			lines[i] = strings.Replace(line, markerDone, markerOpen, 1)
		case strings.Contains(line, markerOpen):
			lines[i] = strings.Replace(line, markerOpen, markerDone, 1)
		default:
			continue
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("checklist item %q not found in task %s", itemText, taskID)
	}

	_, err = s.db.Exec(`
		UPDATE tasks SET content = ?, updated_at = ? WHERE id = ?
	`, strings.Join(lines, "\n"), time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("toggle checklist item: %w", err)
	}
	return nil
}

// LatestChecklist returns the user's most recently updated open
// checklist task, or nil.
func (s *Store) LatestChecklist(userID string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, title, content, is_checklist, status, created_at, updated_at
		FROM tasks
		WHERE user_id = ? AND status = 'open' AND is_checklist = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID)
	return scanTask(row)
}

// TopTasks returns up to limit open tasks, most recently updated first.
func (s *Store) TopTasks(userID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, title, content, is_checklist, status, created_at, updated_at
		FROM tasks
		WHERE user_id = ? AND status = 'open'
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.IsChecklist, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.IsChecklist, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}
