package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func newChannelPublisher(t *testing.T) (*WatermillPublisher, *gochannel.GoChannel) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWatermillPublisher(pubSub, logger), pubSub
}

func receiveOne(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestWatermillPublisher_PublishAttemptGraded(t *testing.T) {
	publisher, pubSub := newChannelPublisher(t)
	defer publisher.Close()

	messages, err := pubSub.Subscribe(context.Background(), TopicAttemptGraded)
	if err != nil {
		t.Fatal(err)
	}

	gradedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	event := AttemptGraded{
		AttemptID:    42,
		TestID:       7,
		UserID:       "student-1",
		Score:        80,
		EarnedPoints: 4,
		TotalPoints:  5,
		Passed:       true,
		Trigger:      "manual",
		GradedAt:     gradedAt,
	}
	if err := publisher.PublishAttemptGraded(event); err != nil {
		t.Fatalf("PublishAttemptGraded() error = %v", err)
	}

	msg := receiveOne(t, messages)
	if msg.UUID == "" {
		t.Error("message has no uuid")
	}

	var got AttemptGraded
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload unmarshal error = %v", err)
	}
	if got != event {
		t.Errorf("payload = %+v, want %+v", got, event)
	}
}

func TestWatermillPublisher_PublishCertificateIssued(t *testing.T) {
	publisher, pubSub := newChannelPublisher(t)
	defer publisher.Close()

	messages, err := pubSub.Subscribe(context.Background(), TopicCertificateIssued)
	if err != nil {
		t.Fatal(err)
	}

	event := CertificateIssued{
		CertificateID:    3,
		TestID:           7,
		UserID:           "student-1",
		AttemptID:        42,
		Score:            80,
		VerificationCode: "AB12CD34",
		IssuedAt:         time.Date(2026, 3, 1, 10, 31, 0, 0, time.UTC),
	}
	if err := publisher.PublishCertificateIssued(event); err != nil {
		t.Fatalf("PublishCertificateIssued() error = %v", err)
	}

	var got CertificateIssued
	if err := json.Unmarshal(receiveOne(t, messages).Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got != event {
		t.Errorf("payload = %+v, want %+v", got, event)
	}
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher, err := NewKafkaPublisher(nil, logger)
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error = %v", err)
	}
	if _, ok := publisher.(*NoopPublisher); !ok {
		t.Errorf("publisher type = %T, want *NoopPublisher", publisher)
	}
	if err := publisher.PublishAttemptGraded(AttemptGraded{}); err != nil {
		t.Errorf("noop publish error = %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("noop close error = %v", err)
	}
}
