package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// subscriberBuffer is how many commands a subscriber may lag behind before it is dropped.
const subscriberBuffer = 32

// event is one SSE message.
type event struct {
	Name string
	Data string
}

// StreamManager fans canvas commands out to SSE subscribers per session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- event]struct{} // session ID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the session. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan event, subscriberBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- event]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers reports how many clients watch the session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends to every subscriber of the session without blocking.
// A subscriber whose buffer is full is dropped and its channel closed, so the
// client reconnects and reloads the canvas instead of missing commands.
func (sm *StreamManager) Broadcast(sessionID string, ev event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	subs := sm.subscribers[sessionID]
	for ch := range subs {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping subscriber", "session_id", sessionID, "event", ev.Name)
			delete(subs, ch)
			close(ch)
		}
	}
	if len(subs) == 0 {
		delete(sm.subscribers, sessionID)
	}
}

// Surface returns a rendering surface that streams the session's canvas commands.
func (sm *StreamManager) Surface(sessionID string) ports.Surface {
	return ports.SurfaceFunc(func(_ context.Context, cmd domain.CanvasCommand) {
		data, err := json.Marshal(cmd)
		if err != nil {
			sm.logger.Error("SSE: Failed to encode canvas command", "op", cmd.Op, "err", err)
			return
		}
		sm.Broadcast(sessionID, event{Name: string(cmd.Op), Data: string(data)})
	})
}
