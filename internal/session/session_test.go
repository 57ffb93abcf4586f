package session

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dvmoura/anota/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, string) {
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
	return NewManager(logger, st, 60*time.Minute), st, u.ID
}

func TestResolveCreatesFirstSession(t *testing.T) {
	m, st, userID := newTestManager(t)

	conv, rotated, err := m.Resolve(userID, "thread-1", "oi", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rotated {
		t.Error("first session must not report rotation")
	}
	if conv == nil || conv.Status != store.ConversationActive {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	count, _ := st.CountActiveConversations(userID, "thread-1")
	if count != 1 {
		t.Errorf("expected 1 active session, got %d", count)
	}
}

func TestResolveReusesActiveSessionAndTouches(t *testing.T) {
	m, _, userID := newTestManager(t)

	t0 := time.Now().Add(-30 * time.Minute)
	first, _, err := m.Resolve(userID, "thread-1", "oi", t0)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	t1 := time.Now()
	second, rotated, err := m.Resolve(userID, "thread-1", "e aí", t1)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if rotated {
		t.Error("unexpected rotation within the idle window")
	}
	if second.ID != first.ID {
		t.Errorf("expected same session, got %s and %s", first.ID, second.ID)
	}
	if second.LastMessageAt.Before(t1.Add(-time.Second)) {
		t.Errorf("expected last_message_at refreshed, got %v", second.LastMessageAt)
	}
}

func TestResolveRotatesAfterIdleTimeout(t *testing.T) {
	m, st, userID := newTestManager(t)

	first, _, err := m.Resolve(userID, "thread-1", "oi", time.Now().Add(-61*time.Minute))
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	second, rotated, err := m.Resolve(userID, "thread-1", "voltei", time.Now())
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if !rotated {
		t.Error("expected rotation after 61 minutes idle")
	}
	if second.ID == first.ID {
		t.Error("expected a fresh session after timeout")
	}

	count, _ := st.CountActiveConversations(userID, "thread-1")
	if count != 1 {
		t.Errorf("expected 1 active session, got %d", count)
	}
}

func TestResolveRotatesOnNewTopicCommand(t *testing.T) {
	m, _, userID := newTestManager(t)

	first, _, _ := m.Resolve(userID, "thread-1", "oi", time.Now())
	second, rotated, err := m.Resolve(userID, "thread-1", "novo assunto", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !rotated || second.ID == first.ID {
		t.Errorf("expected explicit rotation, rotated=%v same=%v", rotated, second.ID == first.ID)
	}
}

func TestIsNewTopicCommand(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"novo assunto", true},
		{"Novo Assunto", true},
		{"  novo assunto  ", true},
		{"novo assunto: férias", true},
		{"new topic", true},
		{"quero falar de um novo assunto qualquer", false},
		{"oi", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsNewTopicCommand(tt.text); got != tt.want {
			t.Errorf("IsNewTopicCommand(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestResolveConcurrentFirstMessages(t *testing.T) {
	m, st, userID := newTestManager(t)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := m.Resolve(userID, "thread-1", "oi", time.Now())
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	count, _ := st.CountActiveConversations(userID, "thread-1")
	if count != 1 {
		t.Errorf("expected exactly 1 active session under parallel deliveries, got %d", count)
	}
}

func TestDeduplicator(t *testing.T) {
	m, st, userID := newTestManager(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDeduplicator(logger, st)

	conv, _, _ := m.Resolve(userID, "thread-1", "oi", time.Now())

	seen, err := d.Seen("wamid.x1")
	if err != nil || seen {
		t.Fatalf("fresh id reported seen=%v err=%v", seen, err)
	}

	if _, _, err := st.InsertMessage(&store.Message{
		ConversationID:    conv.ID,
		UserID:            userID,
		Role:              "user",
		Content:           "oi",
		ProviderMessageID: "wamid.x1",
	}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	seen, err = d.Seen("wamid.x1")
	if err != nil || !seen {
		t.Errorf("recorded id reported seen=%v err=%v", seen, err)
	}

	// Messages without a provider id are never duplicates.
	if seen, _ := d.Seen(""); seen {
		t.Error("empty provider id must never be seen")
	}
}
