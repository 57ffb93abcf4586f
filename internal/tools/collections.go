package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) manageCollectionsTool() *Tool {
	return &Tool{
		Name:        "manage_collections",
		Description: "Create and update the user's durable lists (collections). Creating a list with an existing name reuses it instead of duplicating. The created or found list becomes the user's active list.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"create", "add_item", "update_item", "archive_list"},
					"description": "What to do",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "List name (for create)",
				},
				"collection_id": map[string]any{
					"type":        "string",
					"description": "Target list id (for add_item, update_item, archive_list)",
				},
				"items": map[string]any{
					"type":        "array",
					"description": "Initial items (for create). Plain strings.",
					"items":       map[string]any{"type": "string"},
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Item text (for add_item), or the text to match when no item_id is given (for update_item)",
				},
				"item_id": map[string]any{
					"type":        "string",
					"description": "Item id (for update_item). Omit to address the item by its text.",
				},
				"status": map[string]any{
					"type":        "string",
					"description": "New item status (for update_item), e.g. done or pending",
				},
			},
			"required": []string{"action"},
		},
		Handler: r.handleManageCollections,
	}
}

func (r *Registry) handleManageCollections(ctx context.Context, userID string, args map[string]any) (string, error) {
	switch stringArg(args, "action") {
	case "create":
		return r.createCollection(userID, args)
	case "add_item":
		return r.addCollectionItem(userID, args)
	case "update_item":
		return r.updateCollectionItem(userID, args)
	case "archive_list":
		return r.archiveCollection(userID, args)
	default:
		return "", fmt.Errorf("action must be one of create, add_item, update_item, archive_list")
	}
}

func (r *Registry) createCollection(userID string, args map[string]any) (string, error) {
	name := strings.TrimSpace(stringArg(args, "name"))
	if name == "" {
		return "", fmt.Errorf("name is required")
	}

	coll, created, err := r.store.FindOrCreateCollection(userID, name)
	if err != nil {
		return "", err
	}

	items := normalizeItems(args["items"])
	added := 0
	for _, content := range items {
		if _, err := r.store.AddCollectionItem(coll.ID, content); err != nil {
			return "", fmt.Errorf("add item %q: %w", content, err)
		}
		added++
	}

	status := "found"
	if created {
		status = "created"
	}
	return okPayload(map[string]any{
		"status":        status,
		"collection_id": coll.ID,
		"name":          coll.Name,
		"items_added":   added,
	}), nil
}

func (r *Registry) addCollectionItem(userID string, args map[string]any) (string, error) {
	collID, err := r.resolveCollectionID(userID, args)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(stringArg(args, "content"))
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	item, err := r.store.AddCollectionItem(collID, content)
	if err != nil {
		return "", err
	}
	return okPayload(map[string]any{
		"status":  "added",
		"item_id": item.ID,
		"content": item.Content,
	}), nil
}

func (r *Registry) updateCollectionItem(userID string, args map[string]any) (string, error) {
	status := stringArg(args, "status")
	if status == "" {
		return "", fmt.Errorf("status is required")
	}

	itemID := stringArg(args, "item_id")
	if itemID == "" {
		// Fuzzy addressing: the model usually knows the item text, not
		// the row id.
		collID, err := r.resolveCollectionID(userID, args)
		if err != nil {
			return "", err
		}
		content := stringArg(args, "content")
		if content == "" {
			return "", fmt.Errorf("item_id or content is required")
		}
		item, err := r.store.FindCollectionItemByContent(collID, content, status)
		if err != nil {
			return "", err
		}
		if item == nil {
			return "", fmt.Errorf("no item matching %q found in the list", content)
		}
		itemID = item.ID
	}

	if err := r.store.UpdateCollectionItemStatus(itemID, status); err != nil {
		return "", err
	}
	return okPayload(map[string]any{"status": "updated", "item_id": itemID, "new_status": status}), nil
}

func (r *Registry) archiveCollection(userID string, args map[string]any) (string, error) {
	collID := stringArg(args, "collection_id")
	if collID == "" {
		return "", fmt.Errorf("collection_id is required")
	}
	if err := r.store.ArchiveCollection(userID, collID); err != nil {
		return "", err
	}
	return okPayload(map[string]any{"status": "archived", "collection_id": collID}), nil
}

// resolveCollectionID uses the explicit collection_id when given and
// falls back to the user's pinned (active) list.
func (r *Registry) resolveCollectionID(userID string, args map[string]any) (string, error) {
	if id := stringArg(args, "collection_id"); id != "" {
		coll, err := r.store.GetCollection(userID, id)
		if err != nil {
			return "", err
		}
		if coll == nil {
			return "", fmt.Errorf("collection not found: %s", id)
		}
		return coll.ID, nil
	}
	coll, err := r.store.PinnedCollection(userID)
	if err != nil {
		return "", err
	}
	if coll == nil {
		return "", fmt.Errorf("no active list; create one first or pass collection_id")
	}
	return coll.ID, nil
}

// normalizeItems flattens the model's item array into plain strings.
// Workers sometimes emit objects like {"content": "Leite"} instead of
// bare strings; stringifying those naively would store a meaningless
// placeholder, so the content field is extracted explicitly.
func normalizeItems(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var items []string
	for _, entry := range list {
		var content string
		switch v := entry.(type) {
		case string:
			content = v
		case map[string]any:
			content, _ = v["content"].(string)
		default:
			content = fmt.Sprint(v)
		}
		content = strings.TrimSpace(content)
		if content != "" {
			items = append(items, content)
		}
	}
	return items
}
