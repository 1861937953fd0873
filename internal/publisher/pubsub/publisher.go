// Package pubsub publishes page events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// Publisher wraps a Pub/Sub client and publishes one message per accepted
// careers page.
type Publisher struct {
	client *pubsub.Client
}

// New creates a Publisher using the provided client.
func New(client *pubsub.Client) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return &Publisher{client: client}, nil
}

// Publish sends the event as JSON with the company name as a message
// attribute so subscribers can filter without decoding, blocking until the
// server acknowledges and returning the message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, event discovery.PageEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode page event: %w", err)
	}
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"company": event.CompanyName},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish page event: %w", err)
	}
	return id, nil
}
