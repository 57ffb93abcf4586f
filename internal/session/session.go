// Package session keeps one coherent conversation per chat thread:
// idle timeout rotation, explicit "new topic" rotation, and delivery
// deduplication for at-least-once gateways.
package session

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dvmoura/anota/internal/store"
)

// Manager resolves the active conversation for a thread, rotating it
// when the idle timeout elapses or the user asks for a new topic.
type Manager struct {
	store       *store.Store
	idleTimeout time.Duration
	logger      *slog.Logger
}

func NewManager(logger *slog.Logger, st *store.Store, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Minute
	}
	return &Manager{
		store:       st,
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "session"),
	}
}

// newTopicPhrases trigger explicit session rotation.
var newTopicPhrases = []string{
	"novo assunto",
	"nova conversa",
	"new topic",
	"new conversation",
}

// IsNewTopicCommand reports whether the message is an explicit request
// to start over.
func IsNewTopicCommand(text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	for _, p := range newTopicPhrases {
		if q == p || strings.HasPrefix(q, p+",") || strings.HasPrefix(q, p+".") || strings.HasPrefix(q, p+":") {
			return true
		}
	}
	return false
}

// Resolve returns the conversation the inbound message belongs to,
// creating or rotating as needed. rotated reports whether a previous
// session was archived on this call.
//
// Lookup-then-insert is not atomic under concurrent deliveries; the
// store's partial unique index on active rows is the source of truth
// and CreateActiveConversation converges both racers onto the winner.
func (m *Manager) Resolve(userID, threadID, text string, now time.Time) (conv *store.Conversation, rotated bool, err error) {
	current, err := m.store.ActiveConversation(userID, threadID)
	if err != nil {
		return nil, false, err
	}

	if current != nil {
		idle := now.Sub(current.LastMessageAt)
		switch {
		case IsNewTopicCommand(text):
			m.logger.Info("session rotated on user request",
				"conversation_id", current.ID, "thread_id", threadID)
			rotated = true
		case idle >= m.idleTimeout:
			m.logger.Info("session rotated after idle timeout",
				"conversation_id", current.ID, "idle", idle.Round(time.Second))
			rotated = true
		default:
			if err := m.store.TouchConversation(current.ID, now); err != nil {
				return nil, false, err
			}
			current.LastMessageAt = now
			return current, false, nil
		}

		if err := m.store.ArchiveConversation(current.ID); err != nil {
			return nil, false, err
		}
	}

	conv, err = m.store.CreateActiveConversation(userID, threadID)
	if err != nil {
		return nil, false, err
	}
	return conv, rotated, nil
}

// Deduplicator short-circuits duplicate deliveries before any
// processing happens.
type Deduplicator struct {
	store  *store.Store
	logger *slog.Logger
}

func NewDeduplicator(logger *slog.Logger, st *store.Store) *Deduplicator {
	return &Deduplicator{
		store:  st,
		logger: logger.With("component", "dedup"),
	}
}

// Seen reports whether the provider message id was already processed.
// Messages without a provider id are never considered duplicates.
func (d *Deduplicator) Seen(providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	seen, err := d.store.MessageExistsByProviderID(providerMessageID)
	if err != nil {
		return false, err
	}
	if seen {
		d.logger.Info("duplicate delivery ignored", "provider_message_id", providerMessageID)
	}
	return seen, nil
}
