package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dvmoura/anota/internal/agent"
	"github.com/dvmoura/anota/internal/store"
)

// PipelineRunner abstracts the message pipeline for testability. The
// real implementation is *agent.Pipeline.
type PipelineRunner interface {
	HandleInbound(ctx context.Context, in agent.Inbound) (*agent.Result, error)
}

// Sender abstracts the outbound side of the gateway client.
type Sender interface {
	Send(ctx context.Context, threadID, text string) error
}

// handleTimeout bounds how long a single inbound event may be
// processed (pipeline + reply send).
const handleTimeout = 5 * time.Minute

// rateWindow is the sliding window for per-thread rate limiting.
const rateWindow = time.Minute

// cleanupInterval controls how often stale rate-limit entries are
// evicted.
const cleanupInterval = 10 * time.Minute

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Events    <-chan *Event
	Sender    Sender
	Runner    PipelineRunner
	Store     *store.Store
	Logger    *slog.Logger
	RateLimit int // per thread per minute; 0 = unlimited
}

// Bridge receives gateway events, resolves the sending user, runs the
// pipeline, and sends replies back through the gateway.
type Bridge struct {
	events    <-chan *Event
	sender    Sender
	runner    PipelineRunner
	store     *store.Store
	logger    *slog.Logger
	rateLimit int

	mu          sync.Mutex
	threadTimes map[string][]time.Time
	lastCleanup time.Time
}

// NewBridge creates a gateway message bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		events:      cfg.Events,
		sender:      cfg.Sender,
		runner:      cfg.Runner,
		store:       cfg.Store,
		logger:      logger.With("component", "bridge"),
		rateLimit:   cfg.RateLimit,
		threadTimes: make(map[string][]time.Time),
	}
}

// Start consumes events until ctx is cancelled or the channel closes.
func (b *Bridge) Start(ctx context.Context) {
	b.logger.Info("gateway bridge started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("gateway bridge shutting down")
			return
		case ev, ok := <-b.events:
			if !ok {
				b.logger.Info("gateway event channel closed, bridge stopping")
				return
			}
			if !b.accept(ev) {
				continue
			}
			b.handleEvent(ctx, ev)
		}
	}
}

// accept filters events before any processing: echoes of our own
// sends, non-message events, empty payloads, and rate-limited threads.
func (b *Bridge) accept(ev *Event) bool {
	if ev.FromSelf {
		return false
	}
	if ev.EventType != "" && ev.EventType != "message" {
		b.logger.Debug("ignoring gateway event", "event_type", ev.EventType)
		return false
	}
	if ev.ThreadID == "" || (ev.Text == "" && ev.Media == nil) {
		return false
	}
	if !b.allowThread(ev.ThreadID) {
		b.logger.Warn("gateway message rate-limited", "thread_id", ev.ThreadID)
		return false
	}
	return true
}

func (b *Bridge) handleEvent(ctx context.Context, ev *Event) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	// The thread id doubles as the sender's phone identity.
	user, err := b.store.GetOrCreateUserByPhone(ev.ThreadID)
	if err != nil {
		b.logger.Error("user resolution failed", "thread_id", ev.ThreadID, "error", err)
		return
	}

	in := agent.Inbound{
		UserID:            user.ID,
		ThreadID:          ev.ThreadID,
		Text:              ev.Text,
		ProviderMessageID: ev.ProviderMessageID,
	}
	if ev.Media != nil {
		in.MediaURL = ev.Media.URL
		in.MediaType = ev.Media.Type
	}

	b.logger.Info("gateway message received",
		"thread_id", ev.ThreadID,
		"provider_message_id", ev.ProviderMessageID,
		"text_len", len(ev.Text))

	res, err := b.runner.HandleInbound(ctx, in)
	if err != nil {
		b.logger.Error("pipeline failed", "thread_id", ev.ThreadID, "error", err)
		if serr := b.sender.Send(ctx, ev.ThreadID,
			"Tive um problema para processar sua mensagem. Tenta de novo em instantes?"); serr != nil {
			b.logger.Error("error reply send failed", "thread_id", ev.ThreadID, "error", serr)
		}
		return
	}
	if res.Duplicate || res.Reply == "" {
		return
	}

	if err := b.sender.Send(ctx, ev.ThreadID, res.Reply); err != nil {
		b.logger.Error("reply send failed", "thread_id", ev.ThreadID, "error", err)
		return
	}
	b.logger.Info("reply sent", "thread_id", ev.ThreadID, "reply_len", len(res.Reply))
}

// allowThread checks whether the thread is within the per-minute rate
// limit. Returns true if the message should be processed.
func (b *Bridge) allowThread(threadID string) bool {
	if b.rateLimit <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateWindow)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeCleanupLocked(now)

	timestamps := b.threadTimes[threadID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= b.rateLimit {
		b.threadTimes[threadID] = valid
		return false
	}

	b.threadTimes[threadID] = append(valid, now)
	return true
}

// maybeCleanupLocked evicts stale thread entries. Must be called with
// b.mu held.
func (b *Bridge) maybeCleanupLocked(now time.Time) {
	if now.Sub(b.lastCleanup) < cleanupInterval {
		return
	}
	b.lastCleanup = now

	cutoff := now.Add(-2 * rateWindow)
	for thread, timestamps := range b.threadTimes {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(cutoff) {
			delete(b.threadTimes, thread)
		}
	}
}
