package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Event is one entry of a conversation's SSE stream.
type Event struct {
	Type      string               `json:"type"`
	Message   *domain.Message      `json:"message,omitempty"`
	Expecting domain.ValueCategory `json:"expecting,omitempty"`
}

// Event types.
const (
	EventMessage   = "message"
	EventExpecting = "expecting"
)

// StreamManager keeps the replies of every conversation and fans them out
// to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	mailboxes   map[string]*memory.Sink
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards logs.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		mailboxes:   make(map[string]*memory.Sink),
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Sink returns the sink of a conversation. Every reply is recorded and
// broadcast.
func (sm *StreamManager) Sink(conversationID string) ports.Sink {
	return &streamSink{id: conversationID, streams: sm, mailbox: sm.mailbox(conversationID)}
}

func (sm *StreamManager) mailbox(conversationID string) *memory.Sink {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	mb, ok := sm.mailboxes[conversationID]
	if !ok {
		mb = memory.NewSink()
		sm.mailboxes[conversationID] = mb
	}
	return mb
}

// Messages returns the replies of a conversation after the first offset ones.
func (sm *StreamManager) Messages(conversationID string, offset int) []domain.Message {
	sm.mu.RLock()
	mb, ok := sm.mailboxes[conversationID]
	sm.mu.RUnlock()
	if !ok {
		return nil
	}
	return mb.Drain(offset)
}

// Forget drops the replies of a conversation.
func (sm *StreamManager) Forget(conversationID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.mailboxes, conversationID)
}

func (sm *StreamManager) Subscribe(conversationID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[conversationID]; !ok {
		sm.subscribers[conversationID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[conversationID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[conversationID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, conversationID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(conversationID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[conversationID]
	if !ok {
		return
	}
	sm.logger.Debug("Broadcasting event", "conversation_id", conversationID, "subscribers", len(subs))
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping event", "conversation_id", conversationID)
		}
	}
}

func (sm *StreamManager) publish(conversationID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("Failed to encode event", "conversation_id", conversationID, "err", err)
		return
	}
	sm.Broadcast(conversationID, string(data))
}

type streamSink struct {
	id      string
	streams *StreamManager
	mailbox *memory.Sink
}

func (s *streamSink) Send(ctx context.Context, msg domain.Message) error {
	if err := s.mailbox.Send(ctx, msg); err != nil {
		return err
	}
	s.streams.publish(s.id, Event{Type: EventMessage, Message: &msg})
	return nil
}

func (s *streamSink) SetExpected(ctx context.Context, expect domain.ValueCategory) error {
	if err := s.mailbox.SetExpected(ctx, expect); err != nil {
		return err
	}
	s.streams.publish(s.id, Event{Type: EventExpecting, Expecting: expect})
	return nil
}
