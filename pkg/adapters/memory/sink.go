package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Sink records every message and expectation change. It is used by tests
// and by transports that poll for replies.
type Sink struct {
	mu       sync.Mutex
	messages []domain.Message
	expects  []domain.ValueCategory
	notify   chan struct{}
}

// NewSink creates an empty recording sink.
func NewSink() *Sink {
	return &Sink{notify: make(chan struct{})}
}

func (s *Sink) Send(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.broadcast()
	s.mu.Unlock()
	return nil
}

func (s *Sink) SetExpected(ctx context.Context, expect domain.ValueCategory) error {
	s.mu.Lock()
	s.expects = append(s.expects, expect)
	s.broadcast()
	s.mu.Unlock()
	return nil
}

// broadcast wakes Wait callers; s.mu must be held.
func (s *Sink) broadcast() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Messages returns a copy of the recorded messages.
func (s *Sink) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Texts returns the text or title of every recorded message.
func (s *Sink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Text == "" {
			out = append(out, m.Title)
			continue
		}
		out = append(out, m.Text)
	}
	return out
}

// Expectations returns every expectation set, in order.
func (s *Sink) Expectations() []domain.ValueCategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ValueCategory(nil), s.expects...)
}

// Expecting returns the last expectation set.
func (s *Sink) Expecting() domain.ValueCategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.expects) == 0 {
		return domain.CategoryNone
	}
	return s.expects[len(s.expects)-1]
}

// Drain returns the messages recorded after the first offset ones.
func (s *Sink) Drain(offset int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.messages) {
		return nil
	}
	return append([]domain.Message(nil), s.messages[offset:]...)
}

// Wait blocks until at least n messages were recorded or ctx is done.
func (s *Sink) Wait(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if len(s.messages) >= n {
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitExpecting blocks until the last expectation set is expect or ctx is done.
func (s *Sink) WaitExpecting(ctx context.Context, expect domain.ValueCategory) error {
	for {
		s.mu.Lock()
		current := domain.CategoryNone
		if len(s.expects) > 0 {
			current = s.expects[len(s.expects)-1]
		}
		if current == expect {
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
