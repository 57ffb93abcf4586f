package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FindCollectionByName returns the user's active collection with the
// given name, compared case-insensitively, or nil when absent.
func (s *Store) FindCollectionByName(userID, name string) (*Collection, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, name, status, pinned, created_at, updated_at
		FROM collections
		WHERE user_id = ? AND status = 'active' AND name = ? COLLATE NOCASE
	`, userID, name)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindOrCreateCollection is the idempotent creation path: a second call
// with the same name (any casing) returns the first call's row instead
// of duplicating it. Either way the resulting collection becomes the
// user's pinned (active) list.
func (s *Store) FindOrCreateCollection(userID, name string) (*Collection, bool, error) {
	existing, err := s.FindCollectionByName(userID, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := s.PinCollection(userID, existing.ID); err != nil {
			return nil, false, err
		}
		existing.Pinned = true
		return existing, false, nil
	}

	now := time.Now()
	id, _ := uuid.NewV7()
	_, err = s.db.Exec(`
		INSERT INTO collections (id, user_id, name, status, pinned, created_at, updated_at)
		VALUES (?, ?, ?, 'active', FALSE, ?, ?)
	`, id.String(), userID, name, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("create collection: %w", err)
	}

	if err := s.PinCollection(userID, id.String()); err != nil {
		return nil, false, err
	}

	return &Collection{
		ID:        id.String(),
		UserID:    userID,
		Name:      name,
		Status:    "active",
		Pinned:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}

// PinCollection marks the collection as the user's active list,
// unpinning any other. Both updates happen in one transaction.
func (s *Store) PinCollection(userID, collectionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin pin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE collections SET pinned = FALSE WHERE user_id = ? AND pinned = TRUE AND id != ?
	`, userID, collectionID); err != nil {
		return fmt.Errorf("unpin collections: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE collections SET pinned = TRUE, updated_at = ? WHERE id = ? AND user_id = ?
	`, time.Now(), collectionID, userID); err != nil {
		return fmt.Errorf("pin collection: %w", err)
	}

	return tx.Commit()
}

// PinnedCollection returns the user's most recently updated pinned
// collection, or nil.
func (s *Store) PinnedCollection(userID string) (*Collection, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, name, status, pinned, created_at, updated_at
		FROM collections
		WHERE user_id = ? AND status = 'active' AND pinned = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// PinnedCollections returns up to limit pinned collections, most
// recently updated first.
func (s *Store) PinnedCollections(userID string, limit int) ([]Collection, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, name, status, pinned, created_at, updated_at
		FROM collections
		WHERE user_id = ? AND status = 'active' AND pinned = TRUE
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pinned collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &c.Pinned, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCollection returns a collection by id scoped to the user, or nil.
func (s *Store) GetCollection(userID, collectionID string) (*Collection, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, name, status, pinned, created_at, updated_at
		FROM collections WHERE id = ? AND user_id = ?
	`, collectionID, userID)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// AddCollectionItem appends an item to a collection and bumps the
// collection's updated_at.
func (s *Store) AddCollectionItem(collectionID, content string) (*CollectionItem, error) {
	now := time.Now()
	id, _ := uuid.NewV7()

	var position int
	_ = s.db.QueryRow(`
		SELECT COALESCE(MAX(position), -1) + 1 FROM collection_items WHERE collection_id = ?
	`, collectionID).Scan(&position)

	_, err := s.db.Exec(`
		INSERT INTO collection_items (id, collection_id, content, status, position, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?, ?)
	`, id.String(), collectionID, content, position, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert collection item: %w", err)
	}

	_, _ = s.db.Exec(`UPDATE collections SET updated_at = ? WHERE id = ?`, now, collectionID)

	return &CollectionItem{
		ID:           id.String(),
		CollectionID: collectionID,
		Content:      content,
		Status:       "pending",
		Position:     position,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CollectionItems returns the items of a collection in position order.
func (s *Store) CollectionItems(collectionID string) ([]CollectionItem, error) {
	rows, err := s.db.Query(`
		SELECT id, collection_id, content, status, position, created_at, updated_at
		FROM collection_items
		WHERE collection_id = ?
		ORDER BY position ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query collection items: %w", err)
	}
	defer rows.Close()

	var items []CollectionItem
	for rows.Next() {
		var it CollectionItem
		if err := rows.Scan(&it.ID, &it.CollectionID, &it.Content, &it.Status, &it.Position, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateCollectionItemStatus sets the status of an item addressed by id.
func (s *Store) UpdateCollectionItemStatus(itemID, status string) error {
	res, err := s.db.Exec(`
		UPDATE collection_items SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("update collection item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection item not found: %s", itemID)
	}
	return nil
}

// FindCollectionItemByContent returns the first item whose content
// contains the given text (case-insensitive) and is not already in the
// target status. Used when the caller addresses an item by what it says
// rather than by row id.
func (s *Store) FindCollectionItemByContent(collectionID, content, targetStatus string) (*CollectionItem, error) {
	items, err := s.CollectionItems(collectionID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(content))
	for i := range items {
		if items[i].Status == targetStatus {
			continue
		}
		if strings.Contains(strings.ToLower(items[i].Content), needle) {
			return &items[i], nil
		}
	}
	return nil, nil
}

// ArchiveCollection marks a collection archived and unpins it.
func (s *Store) ArchiveCollection(userID, collectionID string) error {
	res, err := s.db.Exec(`
		UPDATE collections SET status = 'archived', pinned = FALSE, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, time.Now(), collectionID, userID)
	if err != nil {
		return fmt.Errorf("archive collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection not found: %s", collectionID)
	}
	return nil
}

func scanCollection(row *sql.Row) (*Collection, error) {
	var c Collection
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &c.Pinned, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan collection: %w", err)
	}
	return &c, nil
}
