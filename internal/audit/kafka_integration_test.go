//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"siva/internal/audit"
	"siva/internal/audit/store/memory"
	"siva/internal/platform/kafka/producer"
	id "siva/pkg/domain"
	"siva/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.kafka = mgr.GetKafka(s.T())

	p, err := producer.New(s.kafka.Brokers, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.producer = p
}

func (s *KafkaSinkSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// newTopic provisions a fresh single-partition topic so tests on the shared
// broker cannot see each other's records.
func (s *KafkaSinkSuite) newTopic(ctx context.Context) string {
	topic := "siva.audit." + uuid.NewString()
	s.Require().NoError(s.producer.EnsureTopic(ctx, topic, 1, 1))
	return topic
}

// consume reads records from the start of topic until want records arrived
// or the poll deadline expires.
func (s *KafkaSinkSuite) consume(topic string, want int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.kafka.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < want {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(fetches.Err(), "waiting for %d records on %s, got %d", want, topic, len(records))
		records = append(records, fetches.Records()...)
	}
	return records
}

// sinkPayload mirrors the JSON structure the sink publishes.
type sinkPayload struct {
	Category     string `json:"Category"`
	Timestamp    string `json:"Timestamp"`
	TenantID     string `json:"TenantID"`
	Subject      string `json:"Subject"`
	Action       string `json:"Action"`
	Vertical     string `json:"Vertical"`
	SubVertical  string `json:"SubVertical"`
	Decision     string `json:"Decision"`
	Reason       string `json:"Reason"`
	RequestID    string `json:"RequestID"`
	ActorID      string `json:"ActorID"`
	ClientIP     string `json:"ClientIP"`
	ClientDevice string `json:"ClientDevice"`
	Detail       string `json:"Detail"`
}

// TestWriteRoundTrip verifies the published record carries the tenant ID as
// its key and the full event as JSON.
func (s *KafkaSinkSuite) TestWriteRoundTrip() {
	ctx := context.Background()
	topic := s.newTopic(ctx)
	sink := audit.NewKafkaSink(s.producer, topic)

	tenantID := id.TenantID(uuid.New())
	event := audit.Event{
		Category:     audit.CategoryCompliance,
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		TenantID:     tenantID,
		Subject:      "deal-kafka-1",
		Action:       string(audit.EventDealEvaluated),
		Vertical:     "saas",
		SubVertical:  "fintech",
		Decision:     "APPROVE",
		Reason:       "strong metrics",
		RequestID:    uuid.NewString(),
		ActorID:      "tenant:" + tenantID.String(),
		ClientIP:     "203.0.113.7",
		ClientDevice: "Chrome on Mac OS X",
		Detail:       "score 0.812 against policy v1",
	}
	s.Require().NoError(sink.Write(ctx, event))

	records := s.consume(topic, 1)
	s.Equal(tenantID.String(), string(records[0].Key))

	var payload sinkPayload
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal(string(audit.CategoryCompliance), payload.Category)
	s.Equal(tenantID.String(), payload.TenantID)
	s.Equal("deal-kafka-1", payload.Subject)
	s.Equal(string(audit.EventDealEvaluated), payload.Action)
	s.Equal("saas", payload.Vertical)
	s.Equal("fintech", payload.SubVertical)
	s.Equal("APPROVE", payload.Decision)
	s.Equal("strong metrics", payload.Reason)
	s.Equal(event.RequestID, payload.RequestID)
	s.Equal(event.ActorID, payload.ActorID)
	s.Equal("203.0.113.7", payload.ClientIP)
	s.Equal("Chrome on Mac OS X", payload.ClientDevice)
	s.Equal("score 0.812 against policy v1", payload.Detail)

	published, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	s.Require().NoError(err)
	s.True(event.Timestamp.Equal(published))
}

// TestWriteKeysPlatformEventsByAction verifies events without a tenant fall
// back to the action as the partition key.
func (s *KafkaSinkSuite) TestWriteKeysPlatformEventsByAction() {
	ctx := context.Background()
	topic := s.newTopic(ctx)
	sink := audit.NewKafkaSink(s.producer, topic)

	s.Require().NoError(sink.Write(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: time.Now().UTC(),
		Action:    string(audit.EventPolicySeeded),
		Subject:   "policies.yaml",
	}))

	records := s.consume(topic, 1)
	s.Equal(string(audit.EventPolicySeeded), string(records[0].Key))

	var payload sinkPayload
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Empty(payload.TenantID)
	s.Equal("policies.yaml", payload.Subject)
}

// TestTenantTrailStaysOrdered verifies a tenant's events land on one
// partition in emit order.
func (s *KafkaSinkSuite) TestTenantTrailStaysOrdered() {
	ctx := context.Background()
	topic := s.newTopic(ctx)
	sink := audit.NewKafkaSink(s.producer, topic)

	tenantID := id.TenantID(uuid.New())
	subjects := []string{"deal-1", "deal-2", "deal-3"}
	for _, subject := range subjects {
		s.Require().NoError(sink.Write(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: time.Now().UTC(),
			TenantID:  tenantID,
			Subject:   subject,
			Action:    string(audit.EventDealEvaluated),
		}))
	}

	records := s.consume(topic, len(subjects))
	for i, record := range records {
		var payload sinkPayload
		s.Require().NoError(json.Unmarshal(record.Value, &payload))
		s.Equal(subjects[i], payload.Subject)
	}
}

// TestPublisherForwardsThroughWorker verifies the full pipeline: Emit writes
// the store synchronously and the worker forwards the event to Kafka.
func (s *KafkaSinkSuite) TestPublisherForwardsThroughWorker() {
	topic := s.newTopic(context.Background())
	sink := audit.NewKafkaSink(s.producer, topic)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	worker := audit.NewWorker(16, logger, sink)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(store, audit.WithLogger(logger), audit.WithWorker(worker))

	tenantID := id.TenantID(uuid.New())
	err := publisher.Emit(ctx, audit.Event{
		TenantID: tenantID,
		Subject:  "deal-pipeline-1",
		Action:   string(audit.EventDealEvaluated),
		Decision: "NEEDS_REVIEW",
	})
	s.Require().NoError(err)

	// Store write is synchronous with Emit.
	stored, err := store.List(ctx, audit.ListFilter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(audit.CategoryCompliance, stored[0].Category)

	// Kafka delivery is async behind the worker.
	records := s.consume(topic, 1)
	s.Equal(tenantID.String(), string(records[0].Key))

	var payload sinkPayload
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal("deal-pipeline-1", payload.Subject)
	s.Equal("NEEDS_REVIEW", payload.Decision)
	s.Equal(string(audit.CategoryCompliance), payload.Category, "category is derived from the action")
	s.NotEmpty(payload.Timestamp, "emit fills a missing timestamp")
}
