package snapshot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvmoura/anota/internal/store"
)

func newTestBuilder(t *testing.T) (*Builder, *store.Store, string) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	u, err := st.GetOrCreateUserByPhone("+5511999990000")
	if err != nil {
		t.Fatalf("GetOrCreateUserByPhone: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(logger, st), st, u.ID
}

func TestBuildEmptySnapshot(t *testing.T) {
	b, _, userID := newTestBuilder(t)

	snap := b.Build(context.Background(), userID)
	if snap.ActiveList != nil {
		t.Errorf("expected no active list, got %+v", snap.ActiveList)
	}
	if len(snap.TopTasks) != 0 || len(snap.UrgentReminders) != 0 || len(snap.PinnedCollections) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestActiveListFromPinnedCollection(t *testing.T) {
	b, st, userID := newTestBuilder(t)

	c, _, err := st.FindOrCreateCollection(userID, "Compras")
	if err != nil {
		t.Fatalf("FindOrCreateCollection: %v", err)
	}
	for _, it := range []string{"Leite", "Pão"} {
		if _, err := st.AddCollectionItem(c.ID, it); err != nil {
			t.Fatalf("AddCollectionItem: %v", err)
		}
	}

	snap := b.Build(context.Background(), userID)
	if snap.ActiveList == nil {
		t.Fatal("expected an active list")
	}
	if snap.ActiveList.Source != "collection" || snap.ActiveList.Name != "Compras" {
		t.Errorf("unexpected active list: %+v", snap.ActiveList)
	}
	if len(snap.ActiveList.Items) != 2 {
		t.Errorf("expected 2 items, got %v", snap.ActiveList.Items)
	}
}

func TestActiveListRecencyPrefersChecklist(t *testing.T) {
	b, st, userID := newTestBuilder(t)

	if _, _, err := st.FindOrCreateCollection(userID, "Compras"); err != nil {
		t.Fatalf("FindOrCreateCollection: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	task, err := st.CreateTask(userID, "Mercado", []string{"Arroz"}, true)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	snap := b.Build(context.Background(), userID)
	if snap.ActiveList == nil || snap.ActiveList.Source != "checklist" || snap.ActiveList.ID != task.ID {
		t.Errorf("expected the newer checklist to win, got %+v", snap.ActiveList)
	}

	// Touching the collection afterwards flips it back.
	time.Sleep(5 * time.Millisecond)
	c, _, _ := st.FindOrCreateCollection(userID, "Compras")
	if _, err := st.AddCollectionItem(c.ID, "Feijão"); err != nil {
		t.Fatalf("AddCollectionItem: %v", err)
	}
	snap = b.Build(context.Background(), userID)
	if snap.ActiveList == nil || snap.ActiveList.Source != "collection" {
		t.Errorf("expected the refreshed collection to win, got %+v", snap.ActiveList)
	}
}

func TestSnapshotLimits(t *testing.T) {
	b, st, userID := newTestBuilder(t)

	for i := 0; i < 7; i++ {
		if _, err := st.CreateTask(userID, "Tarefa", nil, false); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	for i := 0; i < 7; i++ {
		r := store.Reminder{UserID: userID, Title: "Lembrete", DueAt: time.Now().Add(time.Hour)}
		if _, err := st.CreateReminder(&r); err != nil {
			t.Fatalf("CreateReminder: %v", err)
		}
	}

	snap := b.Build(context.Background(), userID)
	if len(snap.TopTasks) != maxTopTasks {
		t.Errorf("expected %d top tasks, got %d", maxTopTasks, len(snap.TopTasks))
	}
	if len(snap.UrgentReminders) != maxUrgentReminders {
		t.Errorf("expected %d urgent reminders, got %d", maxUrgentReminders, len(snap.UrgentReminders))
	}
}

func TestDoneItemsAnnotated(t *testing.T) {
	b, st, userID := newTestBuilder(t)

	c, _, _ := st.FindOrCreateCollection(userID, "Compras")
	item, _ := st.AddCollectionItem(c.ID, "Leite")
	if err := st.UpdateCollectionItemStatus(item.ID, "done"); err != nil {
		t.Fatalf("UpdateCollectionItemStatus: %v", err)
	}

	snap := b.Build(context.Background(), userID)
	if snap.ActiveList == nil || len(snap.ActiveList.Items) != 1 {
		t.Fatalf("unexpected active list: %+v", snap.ActiveList)
	}
	if snap.ActiveList.Items[0] != "Leite (feito)" {
		t.Errorf("expected done annotation, got %q", snap.ActiveList.Items[0])
	}
}
