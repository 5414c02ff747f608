// Package graph publishes requirement entities to the knowledge graph over
// NATS JetStream.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/semreq/export"
)

// GraphIngestSubject is the default subject for graph ingestion.
const GraphIngestSubject = "graph.ingest.entity"

// source tags every triple this package publishes.
const source = "semreq.build"

// EntityIngestMessage is the message format for graph ingestion.
type EntityIngestMessage struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Triples   []message.Triple `json:"triples"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Validate checks the message before it is published.
func (m *EntityIngestMessage) Validate() error {
	if m.ID == "" {
		return errors.New("entity ID is required")
	}
	return nil
}

// Publisher sends one message to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// StreamPublisher publishes to a JetStream stream through a semstreams client.
type StreamPublisher struct {
	nc *natsclient.Client
}

// NewStreamPublisher wraps a connected client.
func NewStreamPublisher(nc *natsclient.Client) *StreamPublisher {
	return &StreamPublisher{nc: nc}
}

// Publish publishes data and waits for the stream acknowledgement.
func (p *StreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.nc.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Message converts an export entity into an ingest message. Type assertions
// of the minimal profile follow the entity's own triples.
func Message(e export.Entity, now time.Time) EntityIngestMessage {
	types := export.TypeTriples(e.ID, e.EntityType, export.ProfileMinimal)
	triples := make([]message.Triple, 0, len(e.Triples)+len(types))
	for _, t := range e.Triples {
		triples = append(triples, message.Triple{
			Subject:    e.ID,
			Predicate:  t.Predicate,
			Object:     t.Object,
			Source:     source,
			Timestamp:  now,
			Confidence: 1.0,
		})
	}
	for _, t := range types {
		t.Source = source
		t.Timestamp = now
		triples = append(triples, t)
	}
	return EntityIngestMessage{
		ID:        e.ID,
		Type:      string(e.EntityType),
		Triples:   triples,
		UpdatedAt: now,
	}
}

// Publish sends every entity to subject. A nil publisher skips publishing.
// Publishing stops at the first failure.
func Publish(ctx context.Context, p Publisher, subject string, entities []export.Entity, logger *slog.Logger) (int, error) {
	if p == nil {
		return 0, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		subject = GraphIngestSubject
	}

	now := time.Now().UTC()
	for i, e := range entities {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		msg := Message(e, now)
		if err := msg.Validate(); err != nil {
			return i, fmt.Errorf("entity %d: %w", i, err)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return i, fmt.Errorf("marshal entity %s: %w", e.ID, err)
		}
		if err := p.Publish(ctx, subject, data); err != nil {
			return i, fmt.Errorf("publish entity %s: %w", e.ID, err)
		}
	}
	logger.Info("Published requirement graph", "subject", subject, "entities", len(entities))
	return len(entities), nil
}
