// Package chat provides an in-process chat transport.
//
// The Hub fans inbound notices out to per-team subscribers and keeps track
// of which channel each observer is hosting. Outbound messages are written
// to the structured log; a network client can replace the Hub behind
// domain.Transport without touching the rotation.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// ErrHubClosed is returned for outbound calls after Close.
var ErrHubClosed = errors.New("chat hub is closed")

// Compile-time check: Hub implements domain.Transport.
var _ domain.Transport = (*Hub)(nil)

type subscriber struct {
	teamID  string
	handler domain.NoticeHandler
}

// Hub is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[domain.Subscription]subscriber
	hosting     map[string]string
	closed      bool
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[domain.Subscription]subscriber),
		hosting:     make(map[string]string),
	}
}

func (h *Hub) Announce(ctx context.Context, channel, text string) error {
	if h.isClosed() {
		return ErrHubClosed
	}
	slog.InfoContext(ctx, "chat say", "channel", channel, "text", text)
	return nil
}

func (h *Hub) Host(ctx context.Context, observer, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.hosting[strings.ToLower(observer)] = target
	slog.InfoContext(ctx, "chat host", "channel", observer, "target", target)
	return nil
}

func (h *Hub) Unhost(ctx context.Context, observer string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	delete(h.hosting, strings.ToLower(observer))
	slog.InfoContext(ctx, "chat unhost", "channel", observer)
	return nil
}

// Target reports whom observer is currently hosting.
func (h *Hub) Target(observer string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	target, ok := h.hosting[strings.ToLower(observer)]
	return target, ok
}

func (h *Hub) SubscribeNotices(teamID string, handler domain.NoticeHandler) domain.Subscription {
	sub := domain.Subscription(uuid.NewString())

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.subscribers[sub] = subscriber{teamID: teamID, handler: handler}
	}
	return sub
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (h *Hub) Unsubscribe(sub domain.Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}

// Dispatch delivers an inbound notice to every subscriber of teamID and
// returns how many handlers received it. Handlers run on the caller's
// goroutine, outside the hub lock, so they may subscribe or unsubscribe.
func (h *Hub) Dispatch(teamID string, notice domain.Notice) int {
	h.mu.RLock()
	handlers := make([]domain.NoticeHandler, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		if s.teamID == teamID {
			handlers = append(handlers, s.handler)
		}
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(notice)
	}
	return len(handlers)
}

// Subscribers returns the number of live subscriptions of teamID.
func (h *Hub) Subscribers(teamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.subscribers {
		if s.teamID == teamID {
			n++
		}
	}
	return n
}

// Close drops every subscription and rejects further outbound calls.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subscribers = make(map[domain.Subscription]subscriber)
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
