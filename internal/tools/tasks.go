package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) manageTasksTool() *Tool {
	return &Tool{
		Name:        "manage_tasks",
		Description: "Create tasks and checklists, add checklist items, and check items off. Checklist items are addressed by their text, not by index.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"create", "add_item", "update_checklist_item"},
					"description": "What to do",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Task title (for create)",
				},
				"is_checklist": map[string]any{
					"type":        "boolean",
					"description": "Whether the new task is a checklist (for create)",
				},
				"items": map[string]any{
					"type":        "array",
					"description": "Initial checklist items (for create)",
					"items":       map[string]any{"type": "string"},
				},
				"task_id": map[string]any{
					"type":        "string",
					"description": "Target task id (for add_item, update_checklist_item). Omit to use the most recent open checklist.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Item text to add (for add_item) or to toggle (for update_checklist_item)",
				},
			},
			"required": []string{"action"},
		},
		Handler: r.handleManageTasks,
	}
}

func (r *Registry) handleManageTasks(ctx context.Context, userID string, args map[string]any) (string, error) {
	switch stringArg(args, "action") {
	case "create":
		return r.createTask(userID, args)
	case "add_item":
		return r.addChecklistItem(userID, args)
	case "update_checklist_item":
		return r.toggleChecklistItem(userID, args)
	default:
		return "", fmt.Errorf("action must be one of create, add_item, update_checklist_item")
	}
}

func (r *Registry) createTask(userID string, args map[string]any) (string, error) {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	isChecklist, _ := args["is_checklist"].(bool)
	items := normalizeItems(args["items"])

	task, err := r.store.CreateTask(userID, title, items, isChecklist)
	if err != nil {
		return "", err
	}
	return okPayload(map[string]any{
		"status":       "created",
		"task_id":      task.ID,
		"title":        task.Title,
		"is_checklist": task.IsChecklist,
		"items_added":  len(items),
	}), nil
}

func (r *Registry) addChecklistItem(userID string, args map[string]any) (string, error) {
	content := strings.TrimSpace(stringArg(args, "content"))
	if content == "" {
		return "", fmt.Errorf("content is required")
	}
	taskID, err := r.resolveTaskID(userID, args)
	if err != nil {
		return "", err
	}
	if err := r.store.AppendChecklistItem(userID, taskID, content); err != nil {
		return "", err
	}
	return okPayload(map[string]any{"status": "added", "task_id": taskID, "content": content}), nil
}

func (r *Registry) toggleChecklistItem(userID string, args map[string]any) (string, error) {
	content := strings.TrimSpace(stringArg(args, "content"))
	if content == "" {
		return "", fmt.Errorf("content is required")
	}
	taskID, err := r.resolveTaskID(userID, args)
	if err != nil {
		return "", err
	}
	if err := r.store.ToggleChecklistItem(userID, taskID, content); err != nil {
		return "", err
	}
	return okPayload(map[string]any{"status": "toggled", "task_id": taskID, "content": content}), nil
}

func (r *Registry) resolveTaskID(userID string, args map[string]any) (string, error) {
	if id := stringArg(args, "task_id"); id != "" {
		task, err := r.store.GetTask(userID, id)
		if err != nil {
			return "", err
		}
		if task == nil {
			return "", fmt.Errorf("task not found: %s", id)
		}
		return task.ID, nil
	}
	task, err := r.store.LatestChecklist(userID)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", fmt.Errorf("no open checklist; create one first or pass task_id")
	}
	return task.ID, nil
}
