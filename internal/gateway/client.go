// Package gateway connects to the messaging gateway: a websocket
// stream of inbound events and an HTTP endpoint for outbound sends.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dvmoura/anota/internal/httpkit"
)

// Event is one inbound gateway event.
type Event struct {
	EventType         string `json:"eventType"`
	ThreadID          string `json:"threadId"`
	ProviderMessageID string `json:"providerMessageId"`
	FromSelf          bool   `json:"fromSelf"`
	Text              string `json:"text,omitempty"`
	Media             *Media `json:"media,omitempty"`
}

// Media describes an attachment on an inbound event.
type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// reconnectBase is the starting backoff after a dropped stream.
const reconnectBase = 2 * time.Second

// reconnectMax caps the backoff growth.
const reconnectMax = time.Minute

// Client consumes gateway events and sends replies.
type Client struct {
	eventsURL string
	sendURL   string
	token     string
	http      *http.Client
	logger    *slog.Logger
	events    chan *Event
}

func NewClient(logger *slog.Logger, eventsURL, sendURL, token string) *Client {
	return &Client{
		eventsURL: eventsURL,
		sendURL:   sendURL,
		token:     token,
		http:      httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
		logger:    logger.With("component", "gateway"),
		events:    make(chan *Event, 64),
	}
}

// Events returns the inbound event channel. Closed when Start returns.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// Start consumes the websocket event stream until ctx is cancelled,
// reconnecting with exponential backoff on drops.
func (c *Client) Start(ctx context.Context) {
	defer close(c.events)

	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("gateway stream dropped, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.eventsURL, header)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	if resp != nil {
		httpkit.DrainAndClose(resp.Body, 4096)
	}
	defer conn.Close()

	c.logger.Info("gateway stream connected", "url", c.eventsURL)

	// Close the connection when the context ends so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway event: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("malformed gateway event skipped", "error", err)
			continue
		}

		select {
		case c.events <- &ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send posts a plain-text reply to the gateway.
func (c *Client) Send(ctx context.Context, threadID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"threadId": threadID,
		"text":     text,
	})
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway send failed: %s: %s",
			resp.Status, httpkit.ReadErrorBody(resp.Body, 4096))
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return nil
}
