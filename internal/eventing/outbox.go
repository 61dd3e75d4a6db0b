package eventing

import (
	"context"
	"sync"
)

// OutboxWriter appends envelopes for asynchronous delivery. The engine
// only emits; draining the outbox belongs to the surrounding system.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Publisher wraps an event into an envelope and writes it to the outbox.
type Publisher struct {
	outbox OutboxWriter
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter) *Publisher {
	return &Publisher{outbox: outbox}
}

// Publish envelopes the event and appends it.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	env, err := BuildEnvelope(event, Meta{})
	if err != nil {
		return err
	}
	_, err = p.outbox.Insert(ctx, env)
	return err
}

// MemoryOutbox keeps envelopes in memory, for tests and default wiring.
type MemoryOutbox struct {
	mu      sync.RWMutex
	records []Envelope
}

// NewMemoryOutbox constructs the store.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Insert appends the envelope.
func (s *MemoryOutbox) Insert(ctx context.Context, env Envelope) (string, error) {
	_ = ctx
	s.mu.Lock()
	s.records = append(s.records, env)
	s.mu.Unlock()
	return env.EventID, nil
}

// List returns a snapshot of the stored envelopes.
func (s *MemoryOutbox) List() []Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Envelope(nil), s.records...)
}
