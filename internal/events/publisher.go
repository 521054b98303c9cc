package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topics published by the quiz service.
const (
	TopicAttemptGraded     = "quiz.attempt.graded"
	TopicCertificateIssued = "quiz.certificate.issued"
)

// AttemptGraded is emitted after an attempt has been graded, regardless of
// what triggered the submission.
type AttemptGraded struct {
	AttemptID    uint      `json:"attempt_id"`
	TestID       uint      `json:"test_id"`
	UserID       string    `json:"user_id"`
	Score        float64   `json:"score"`
	EarnedPoints float64   `json:"earned_points"`
	TotalPoints  float64   `json:"total_points"`
	Passed       bool      `json:"passed"`
	Trigger      string    `json:"trigger"`
	GradedAt     time.Time `json:"graded_at"`
}

// CertificateIssued is emitted when a passing attempt produces a certificate.
type CertificateIssued struct {
	CertificateID    uint      `json:"certificate_id"`
	TestID           uint      `json:"test_id"`
	UserID           string    `json:"user_id"`
	AttemptID        uint      `json:"attempt_id"`
	Score            float64   `json:"score"`
	VerificationCode string    `json:"verification_code"`
	IssuedAt         time.Time `json:"issued_at"`
}

// Publisher publishes domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishAttemptGraded(event AttemptGraded) error
	PublishCertificateIssued(event CertificateIssued) error
	Close() error
}

// WatermillPublisher publishes events through a watermill message publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewKafkaPublisher builds a publisher backed by Kafka. Returns a
// NoopPublisher when no brokers are configured, so callers never need a nil
// check.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		logger.Info("no Kafka brokers configured, events disabled")
		return NewNoopPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	return NewWatermillPublisher(publisher, logger), nil
}

// NewWatermillPublisher wraps an existing watermill publisher. Used directly
// in tests with the gochannel pubsub.
func NewWatermillPublisher(publisher message.Publisher, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *WatermillPublisher) PublishAttemptGraded(event AttemptGraded) error {
	return p.publish(TopicAttemptGraded, event)
}

func (p *WatermillPublisher) PublishCertificateIssued(event CertificateIssued) error {
	return p.publish(TopicCertificateIssued, event)
}

func (p *WatermillPublisher) publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("event published", "topic", topic, "message_id", msg.UUID)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NoopPublisher drops all events. Used when messaging is not configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) PublishAttemptGraded(AttemptGraded) error         { return nil }
func (*NoopPublisher) PublishCertificateIssued(CertificateIssued) error { return nil }
func (*NoopPublisher) Close() error                                     { return nil }
