// Package memory records page events in process, for tests and runs without
// Pub/Sub infrastructure.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// PublishedEvent is one recorded careers-page announcement.
type PublishedEvent struct {
	Topic string
	Event discovery.PageEvent
}

// Publisher keeps every published page event for later inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
}

// New returns an empty in-memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message ID.
func (p *Publisher) Publish(_ context.Context, topic string, event discovery.PageEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Topic: topic, Event: event})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns a copy of the recorded page events.
func (p *Publisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// URLs returns the page URLs published to a topic, in publish order.
func (p *Publisher) URLs(topic string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var urls []string
	for _, e := range p.events {
		if e.Topic == topic {
			urls = append(urls, e.Event.URL)
		}
	}
	return urls
}
