package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) saveMemoryTool() *Tool {
	return &Tool{
		Name:        "save_memory",
		Description: "Save a durable fact about the user (preferences, dates, people). Use for things worth remembering across conversations.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The fact to remember, phrased as a standalone sentence",
				},
			},
			"required": []string{"content"},
		},
		Handler: r.handleSaveMemory,
	}
}

func (r *Registry) handleSaveMemory(ctx context.Context, userID string, args map[string]any) (string, error) {
	content := strings.TrimSpace(stringArg(args, "content"))
	if content == "" {
		return "", fmt.Errorf("content is required")
	}
	mem, err := r.store.SaveMemory(userID, content)
	if err != nil {
		return "", err
	}
	return okPayload(map[string]any{"status": "saved", "memory_id": mem.ID}), nil
}

func (r *Registry) queryMessagesTool() *Tool {
	return &Tool{
		Name:        "query_messages",
		Description: "Search the user's message history and saved memories for a phrase. Read-only.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Text to search for",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results (default 10)",
				},
			},
			"required": []string{"query"},
		},
		ReadOnly: true,
		Handler:  r.handleQueryMessages,
	}
}

func (r *Registry) handleQueryMessages(ctx context.Context, userID string, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := 10
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	messages, err := r.store.SearchMessages(userID, query, limit)
	if err != nil {
		return "", err
	}
	memories, err := r.store.SearchMemories(userID, query, limit)
	if err != nil {
		return "", err
	}

	type hit struct {
		Kind    string `json:"kind"`
		Content string `json:"content"`
		When    string `json:"when"`
	}
	var hits []hit
	for _, m := range messages {
		hits = append(hits, hit{Kind: "message", Content: m.Content, When: m.CreatedAt.Format("2006-01-02 15:04")})
	}
	for _, m := range memories {
		hits = append(hits, hit{Kind: "memory", Content: m.Content, When: m.CreatedAt.Format("2006-01-02 15:04")})
	}
	return okPayload(map[string]any{"query": query, "results": hits, "count": len(hits)}), nil
}
