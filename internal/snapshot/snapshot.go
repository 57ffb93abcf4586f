// Package snapshot assembles the per-user working context injected
// into every model turn: the active list, top open tasks, urgent
// reminders, and pinned collections.
package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dvmoura/anota/internal/store"
)

// Limits on each snapshot section.
const (
	maxTopTasks          = 5
	maxUrgentReminders   = 5
	maxPinnedCollections = 3

	urgencyWindow = 24 * time.Hour
)

// ActiveList is the list the user is currently working on, resolved
// from either a pinned collection or a recent checklist task.
type ActiveList struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Source string   `json:"source"` // "collection" or "checklist"
	Items  []string `json:"items"`
}

// ActiveContext is the snapshot handed to the prompt assembly. Any
// section may be empty; a partial snapshot is still usable.
type ActiveContext struct {
	ActiveList        *ActiveList        `json:"active_list,omitempty"`
	TopTasks          []store.Task       `json:"top_tasks,omitempty"`
	UrgentReminders   []store.Reminder   `json:"urgent_reminders,omitempty"`
	PinnedCollections []store.Collection `json:"pinned_collections,omitempty"`
}

// Builder reads the store and produces ActiveContext snapshots.
type Builder struct {
	store  *store.Store
	logger *slog.Logger
}

func NewBuilder(logger *slog.Logger, st *store.Store) *Builder {
	return &Builder{
		store:  st,
		logger: logger.With("component", "snapshot"),
	}
}

// Build assembles the snapshot for a user. Each section degrades
// independently: a failed read logs a warning and leaves the section
// empty rather than failing the whole turn.
func (b *Builder) Build(ctx context.Context, userID string) *ActiveContext {
	snap := &ActiveContext{}

	snap.ActiveList = b.resolveActiveList(userID)

	tasks, err := b.store.TopTasks(userID, maxTopTasks)
	if err != nil {
		b.logger.Warn("snapshot: top tasks unavailable", "user_id", userID, "error", err)
	} else {
		snap.TopTasks = tasks
	}

	reminders, err := b.store.UrgentReminders(userID, urgencyWindow, maxUrgentReminders)
	if err != nil {
		b.logger.Warn("snapshot: urgent reminders unavailable", "user_id", userID, "error", err)
	} else {
		snap.UrgentReminders = reminders
	}

	pinned, err := b.store.PinnedCollections(userID, maxPinnedCollections)
	if err != nil {
		b.logger.Warn("snapshot: pinned collections unavailable", "user_id", userID, "error", err)
	} else {
		snap.PinnedCollections = pinned
	}

	return snap
}

// resolveActiveList picks between the pinned collection and the most
// recently updated open checklist, whichever was touched last. On a
// tie the collection wins, since pinning is an explicit user action.
func (b *Builder) resolveActiveList(userID string) *ActiveList {
	coll, err := b.store.PinnedCollection(userID)
	if err != nil {
		b.logger.Warn("snapshot: pinned collection unavailable", "user_id", userID, "error", err)
		coll = nil
	}
	task, err := b.store.LatestChecklist(userID)
	if err != nil {
		b.logger.Warn("snapshot: latest checklist unavailable", "user_id", userID, "error", err)
		task = nil
	}

	switch {
	case coll == nil && task == nil:
		return nil
	case coll != nil && (task == nil || !task.UpdatedAt.After(coll.UpdatedAt)):
		return b.listFromCollection(coll)
	default:
		return listFromChecklist(task)
	}
}

func (b *Builder) listFromCollection(c *store.Collection) *ActiveList {
	items, err := b.store.CollectionItems(c.ID)
	if err != nil {
		b.logger.Warn("snapshot: collection items unavailable", "collection_id", c.ID, "error", err)
	}
	list := &ActiveList{ID: c.ID, Name: c.Name, Source: "collection"}
	for _, it := range items {
		line := it.Content
		if it.Status == "done" {
			line += " (feito)"
		}
		list.Items = append(list.Items, line)
	}
	return list
}

func listFromChecklist(t *store.Task) *ActiveList {
	list := &ActiveList{ID: t.ID, Name: t.Title, Source: "checklist"}
	for _, line := range strings.Split(t.Content, "\n") {
		if line != "" {
			list.Items = append(list.Items, line)
		}
	}
	return list
}
