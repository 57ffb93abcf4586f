package store

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testUser(t *testing.T, s *Store) *User {
	t.Helper()
	u, err := s.GetOrCreateUserByPhone("+5511999990000")
	if err != nil {
		t.Fatalf("GetOrCreateUserByPhone: %v", err)
	}
	return u
}

func TestGetOrCreateUserByPhoneIdempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.GetOrCreateUserByPhone("+5511988887777")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := s.GetOrCreateUserByPhone("+5511988887777")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same user, got %s and %s", first.ID, second.ID)
	}
}

func TestUpdateUserSettings(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	if err := s.UpdateUserSettings(u.ID, "Seja breve.", "modelo-x", "quiet"); err != nil {
		t.Fatalf("UpdateUserSettings: %v", err)
	}

	got, err := s.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.SystemPrompt != "Seja breve." || got.Model != "modelo-x" || got.BotMode != "quiet" {
		t.Errorf("settings not persisted: %+v", got)
	}

	// Empty strings clear the settings.
	if err := s.UpdateUserSettings(u.ID, "", "", ""); err != nil {
		t.Fatalf("clear settings: %v", err)
	}
	got, _ = s.GetUser(u.ID)
	if got.SystemPrompt != "" || got.Model != "" || got.BotMode != "" {
		t.Errorf("settings not cleared: %+v", got)
	}

	if err := s.UpdateUserSettings("missing-id", "", "", ""); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestCreateActiveConversationRace(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	// N concurrent first-message deliveries must converge on one row.
	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := s.CreateActiveConversation(u.ID, "thread-1")
			if err != nil {
				t.Errorf("CreateActiveConversation: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	count, err := s.CountActiveConversations(u.ID, "thread-1")
	if err != nil {
		t.Fatalf("CountActiveConversations: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 active conversation, got %d", count)
	}
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Errorf("caller %d got conversation %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
}

func TestArchiveThenCreateNewConversation(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	first, err := s.CreateActiveConversation(u.ID, "thread-1")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := s.ArchiveConversation(first.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	second, err := s.CreateActiveConversation(u.ID, "thread-1")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a fresh conversation after archival")
	}

	count, _ := s.CountActiveConversations(u.ID, "thread-1")
	if count != 1 {
		t.Errorf("expected 1 active conversation, got %d", count)
	}
}

func TestInsertMessageDeduplicatesProviderID(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)
	conv, _ := s.CreateActiveConversation(u.ID, "thread-1")

	msg := &Message{
		ConversationID:    conv.ID,
		UserID:            u.ID,
		Role:              "user",
		Content:           "Faz uma lista de compras: Leite, Pão",
		ProviderMessageID: "wamid.abc123",
	}
	firstID, inserted, err := s.InsertMessage(msg)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Error("first insert must report inserted")
	}
	secondID, inserted, err := s.InsertMessage(&Message{
		ConversationID:    conv.ID,
		UserID:            u.ID,
		Role:              "user",
		Content:           "Faz uma lista de compras: Leite, Pão",
		ProviderMessageID: "wamid.abc123",
	})
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Error("duplicate insert must report not inserted")
	}
	if secondID != firstID {
		t.Errorf("duplicate delivery got id %s, want existing %s", secondID, firstID)
	}

	msgs, err := s.ConversationMessages(conv.ID, 10)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 stored message, got %d", len(msgs))
	}

	exists, err := s.MessageExistsByProviderID("wamid.abc123")
	if err != nil || !exists {
		t.Errorf("expected provider id lookup to hit, got exists=%v err=%v", exists, err)
	}
}

func TestMessagesWithoutProviderIDNeverCollide(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)
	conv, _ := s.CreateActiveConversation(u.ID, "thread-1")

	for i := 0; i < 3; i++ {
		if _, _, err := s.InsertMessage(&Message{
			ConversationID: conv.ID,
			UserID:         u.ID,
			Role:           "assistant",
			Content:        "ok",
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	msgs, _ := s.ConversationMessages(conv.ID, 10)
	if len(msgs) != 3 {
		t.Errorf("expected 3 messages, got %d", len(msgs))
	}
}

func TestFindOrCreateCollectionIdempotent(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	first, created, err := s.FindOrCreateCollection(u.ID, "Compras")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !created {
		t.Error("expected first call to create")
	}

	// Same name, different casing: must return the same row.
	second, created, err := s.FindOrCreateCollection(u.ID, "compras")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Error("expected second call to find, not create")
	}
	if second.ID != first.ID {
		t.Errorf("got collection %s, want %s", second.ID, first.ID)
	}
	if !second.Pinned {
		t.Error("expected found collection to be pinned")
	}
}

func TestPinCollectionUnpinsOthers(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	a, _, _ := s.FindOrCreateCollection(u.ID, "Compras")
	b, _, _ := s.FindOrCreateCollection(u.ID, "Leituras")

	pinned, err := s.PinnedCollection(u.ID)
	if err != nil {
		t.Fatalf("PinnedCollection: %v", err)
	}
	if pinned == nil || pinned.ID != b.ID {
		t.Fatalf("expected %s pinned, got %+v", b.ID, pinned)
	}

	if err := s.PinCollection(u.ID, a.ID); err != nil {
		t.Fatalf("PinCollection: %v", err)
	}
	pinned, _ = s.PinnedCollection(u.ID)
	if pinned == nil || pinned.ID != a.ID {
		t.Errorf("expected %s pinned after repin, got %+v", a.ID, pinned)
	}
}

func TestAddAndCompleteCollectionItems(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)
	c, _, _ := s.FindOrCreateCollection(u.ID, "Compras")

	for _, content := range []string{"Leite", "Pão", "Café"} {
		if _, err := s.AddCollectionItem(c.ID, content); err != nil {
			t.Fatalf("AddCollectionItem(%s): %v", content, err)
		}
	}

	items, err := s.CollectionItems(c.ID)
	if err != nil {
		t.Fatalf("CollectionItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, it := range items {
		if it.Position != i {
			t.Errorf("item %d has position %d", i, it.Position)
		}
	}

	// Address the item by fuzzy content match, not id.
	found, err := s.FindCollectionItemByContent(c.ID, "leite", "done")
	if err != nil {
		t.Fatalf("FindCollectionItemByContent: %v", err)
	}
	if found == nil || found.Content != "Leite" {
		t.Fatalf("expected Leite, got %+v", found)
	}
	if err := s.UpdateCollectionItemStatus(found.ID, "done"); err != nil {
		t.Fatalf("UpdateCollectionItemStatus: %v", err)
	}

	// Already done: the fuzzy lookup must now skip it.
	again, _ := s.FindCollectionItemByContent(c.ID, "leite", "done")
	if again != nil {
		t.Errorf("expected no match for already-done item, got %+v", again)
	}
}

func TestUpdateCollectionItemStatusMissing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateCollectionItemStatus("no-such-item", "done")
	if err == nil {
		t.Error("expected error for missing item")
	}
}

func TestChecklistToggleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	task, err := s.CreateTask(u.ID, "Mercado", []string{"Leite", "Pão"}, true)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if !strings.Contains(task.Content, "- [ ] Leite") {
		t.Fatalf("unexpected checklist content:\n%s", task.Content)
	}

	if err := s.ToggleChecklistItem(u.ID, task.ID, "leite"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	got, _ := s.GetTask(u.ID, task.ID)
	if !strings.Contains(got.Content, "- [x] Leite") {
		t.Errorf("expected Leite checked:\n%s", got.Content)
	}
	if !strings.Contains(got.Content, "- [ ] Pão") {
		t.Errorf("expected Pão untouched:\n%s", got.Content)
	}

	if err := s.ToggleChecklistItem(u.ID, task.ID, "Leite"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	got, _ = s.GetTask(u.ID, task.ID)
	if !strings.Contains(got.Content, "- [ ] Leite") {
		t.Errorf("expected Leite unchecked after round trip:\n%s", got.Content)
	}
}

func TestToggleChecklistItemMissingIsError(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)
	task, _ := s.CreateTask(u.ID, "Mercado", []string{"Leite"}, true)

	err := s.ToggleChecklistItem(u.ID, task.ID, "arroz")
	if err == nil {
		t.Error("expected error for unmatched item")
	}
}

func TestLatestChecklistPrefersRecentlyUpdated(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	older, _ := s.CreateTask(u.ID, "Antiga", []string{"a"}, true)
	time.Sleep(5 * time.Millisecond)
	newer, _ := s.CreateTask(u.ID, "Nova", []string{"b"}, true)

	latest, err := s.LatestChecklist(u.ID)
	if err != nil {
		t.Fatalf("LatestChecklist: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("expected %s, got %+v", newer.ID, latest)
	}

	// Touching the older one moves it to the front.
	time.Sleep(5 * time.Millisecond)
	if err := s.AppendChecklistItem(u.ID, older.ID, "c"); err != nil {
		t.Fatalf("AppendChecklistItem: %v", err)
	}
	latest, _ = s.LatestChecklist(u.ID)
	if latest == nil || latest.ID != older.ID {
		t.Errorf("expected %s after update, got %+v", older.ID, latest)
	}
}

func TestCreateReminderValidation(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	tests := []struct {
		name    string
		r       Reminder
		wantErr bool
	}{
		{"valid", Reminder{UserID: u.ID, Title: "Pagar boleto", DueAt: time.Now().Add(time.Hour)}, false},
		{"missing title", Reminder{UserID: u.ID, DueAt: time.Now()}, true},
		{"missing due", Reminder{UserID: u.ID, Title: "x"}, true},
		{"custom without interval", Reminder{UserID: u.ID, Title: "x", DueAt: time.Now(), Recurrence: RecurrenceCustom}, true},
		{"custom ok", Reminder{UserID: u.ID, Title: "x", DueAt: time.Now(), Recurrence: RecurrenceCustom, RecurrenceInterval: 2, RecurrenceUnit: "days"}, false},
		{"bogus recurrence", Reminder{UserID: u.ID, Title: "x", DueAt: time.Now(), Recurrence: "fortnightly"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.r
			_, err := s.CreateReminder(&r)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateReminder error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUrgentRemindersWindowAndOrder(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	now := time.Now()
	soon := Reminder{UserID: u.ID, Title: "Em 1h", DueAt: now.Add(time.Hour)}
	later := Reminder{UserID: u.ID, Title: "Em 3h", DueAt: now.Add(3 * time.Hour)}
	faraway := Reminder{UserID: u.ID, Title: "Semana que vem", DueAt: now.Add(7 * 24 * time.Hour)}
	for _, r := range []*Reminder{&later, &soon, &faraway} {
		if _, err := s.CreateReminder(r); err != nil {
			t.Fatalf("CreateReminder(%s): %v", r.Title, err)
		}
	}

	urgent, err := s.UrgentReminders(u.ID, 24*time.Hour, 5)
	if err != nil {
		t.Fatalf("UrgentReminders: %v", err)
	}
	if len(urgent) != 2 {
		t.Fatalf("expected 2 urgent reminders, got %d", len(urgent))
	}
	if urgent[0].Title != "Em 1h" || urgent[1].Title != "Em 3h" {
		t.Errorf("wrong order: %s, %s", urgent[0].Title, urgent[1].Title)
	}
}

func TestSaveAndSearchMemories(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	if _, err := s.SaveMemory(u.ID, "Prefere café sem açúcar"); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}
	if _, err := s.SaveMemory(u.ID, "Aniversário da Ana em março"); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	hits, err := s.SearchMemories(u.ID, "café", 10)
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if len(hits) != 1 || !strings.Contains(hits[0].Content, "café") {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestToolCallAudit(t *testing.T) {
	s := newTestStore(t)
	u := testUser(t, s)

	callID, err := s.RecordToolCall(u.ID, "manage_collections", `{"action":"create"}`)
	if err != nil {
		t.Fatalf("RecordToolCall: %v", err)
	}
	if err := s.CompleteToolCall(callID, `{"status":"created"}`, ""); err != nil {
		t.Fatalf("CompleteToolCall: %v", err)
	}

	records, err := s.RecentToolCalls(10)
	if err != nil {
		t.Fatalf("RecentToolCalls: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ToolName != "manage_collections" || r.Result == "" || r.CompletedAt == nil {
		t.Errorf("incomplete audit record: %+v", r)
	}
}
