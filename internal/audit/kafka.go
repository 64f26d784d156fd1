package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"siva/internal/platform/kafka/producer"
)

// KafkaSink forwards audit events to a Kafka topic. It sits behind the
// worker, so a slow or unreachable broker delays the forwarding queue, not
// the operation that emitted the event.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

// kafkaPayload is the JSON structure published to the audit topic.
// Field names match audit.Event for proper deserialization by consumers.
type kafkaPayload struct {
	Category     string `json:"Category"`
	Timestamp    string `json:"Timestamp"`
	TenantID     string `json:"TenantID,omitempty"`
	Subject      string `json:"Subject"`
	Action       string `json:"Action"`
	Vertical     string `json:"Vertical,omitempty"`
	SubVertical  string `json:"SubVertical,omitempty"`
	Decision     string `json:"Decision,omitempty"`
	Reason       string `json:"Reason,omitempty"`
	RequestID    string `json:"RequestID,omitempty"`
	ActorID      string `json:"ActorID,omitempty"`
	ClientIP     string `json:"ClientIP,omitempty"`
	ClientDevice string `json:"ClientDevice,omitempty"`
	Detail       string `json:"Detail,omitempty"`
}

func (s *KafkaSink) Write(ctx context.Context, event Event) error {
	payload := kafkaPayload{
		Category:     string(event.Category),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		Subject:      event.Subject,
		Action:       event.Action,
		Vertical:     event.Vertical,
		SubVertical:  event.SubVertical,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ActorID:      event.ActorID,
		ClientIP:     event.ClientIP,
		ClientDevice: event.ClientDevice,
		Detail:       event.Detail,
	}
	if !event.TenantID.IsNil() {
		payload.TenantID = event.TenantID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Key by tenant so one tenant's trail stays ordered within a partition.
	var key []byte
	if payload.TenantID != "" {
		key = []byte(payload.TenantID)
	} else {
		key = []byte(event.Action)
	}

	return s.producer.Produce(ctx, s.topic, key, value)
}
