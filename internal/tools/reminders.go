package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvmoura/anota/internal/store"
)

func (r *Registry) manageRemindersTool() *Tool {
	return &Tool{
		Name:        "manage_reminders",
		Description: "Create reminders with an absolute due time. Resolve relative phrases (amanhã, daqui a 2 horas) to an RFC 3339 timestamp before calling.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"create"},
					"description": "What to do",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "What to remind the user about",
				},
				"due_at": map[string]any{
					"type":        "string",
					"description": "Due time in RFC 3339 format, e.g. 2026-08-30T09:00:00-03:00",
				},
				"recurrence": map[string]any{
					"type":        "string",
					"enum":        []string{"none", "daily", "weekly", "custom"},
					"description": "Repeat schedule, default none",
				},
				"recurrence_interval": map[string]any{
					"type":        "integer",
					"description": "Repeat every N units (custom recurrence only)",
				},
				"recurrence_unit": map[string]any{
					"type":        "string",
					"description": "Unit for custom recurrence: hours, days, weeks or months",
				},
				"recurrence_count": map[string]any{
					"type":        "integer",
					"description": "How many occurrences before the reminder stops (custom recurrence only, 0 = unlimited)",
				},
			},
			"required": []string{"action", "title", "due_at"},
		},
		Handler: r.handleManageReminders,
	}
}

func (r *Registry) handleManageReminders(ctx context.Context, userID string, args map[string]any) (string, error) {
	if action := stringArg(args, "action"); action != "create" {
		return "", fmt.Errorf("action must be create")
	}

	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	dueRaw := stringArg(args, "due_at")
	if dueRaw == "" {
		return "", fmt.Errorf("due_at is required")
	}
	dueAt, err := time.Parse(time.RFC3339, dueRaw)
	if err != nil {
		return "", fmt.Errorf("due_at must be RFC 3339: %w", err)
	}

	reminder := store.Reminder{
		UserID:     userID,
		Title:      title,
		DueAt:      dueAt,
		Recurrence: stringArg(args, "recurrence"),
	}
	if n, ok := args["recurrence_interval"].(float64); ok {
		reminder.RecurrenceInterval = int(n)
	}
	reminder.RecurrenceUnit = stringArg(args, "recurrence_unit")
	if n, ok := args["recurrence_count"].(float64); ok {
		reminder.RecurrenceCount = int(n)
	}

	created, err := r.store.CreateReminder(&reminder)
	if err != nil {
		return "", err
	}
	return okPayload(map[string]any{
		"status":      "created",
		"reminder_id": created.ID,
		"title":       created.Title,
		"due_at":      created.DueAt.Format(time.RFC3339),
		"recurrence":  created.Recurrence,
	}), nil
}
