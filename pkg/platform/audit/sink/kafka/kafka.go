// Package kafka publishes audit events to a Kafka topic. Kafka is the
// durable home of the audit trail; downstream consumers materialize it for
// querying and retention enforcement.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"trafficase/pkg/platform/audit"
)

// Sink produces one JSON record per audit event. Records are keyed by
// subject so all events for a record land in the same partition, preserving
// per-record ordering.
type Sink struct {
	client *kgo.Client
	topic  string
}

// record is the wire shape of one audit event.
type record struct {
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Action         string `json:"action"`
	Subject        string `json:"subject"`
	Detail         string `json:"detail,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Sink{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)

	topics, err := adm.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}

	responses, err := adm.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create kafka topic %s: %w", topic, err)
	}
	for _, resp := range responses {
		if resp.Err != nil {
			return fmt.Errorf("create kafka topic %s: %w", topic, resp.Err)
		}
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, events []audit.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(record{
			Category:       string(audit.AuditEvent(event.Action).Category()),
			Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
			Action:         event.Action,
			Subject:        event.Subject,
			Detail:         event.Detail,
			RequestID:      event.RequestID,
			IdempotencyKey: event.IdempotencyKey,
		})
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(event.Subject),
			Value: payload,
		})
	}

	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}
