// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventSessionLogged is emitted after a practice session is stored.
const EventSessionLogged = "session.logged"

// SessionLogged is the payload of EventSessionLogged.
type SessionLogged struct {
	SessionID  int64     `json:"sessionId"`
	UserID     int64     `json:"userId"`
	RudimentID int64     `json:"rudimentId"`
	Duration   int       `json:"duration"`
	Tempo      int       `json:"tempo"`
	Quality    int       `json:"quality"`
	Date       time.Time `json:"date"`
}

// Publisher delivers domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishSessionLogged(ctx context.Context, evt SessionLogged) error
	Close() error
}

// Writer is the part of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by user id, so one user's events stay ordered.
type KafkaPublisher struct {
	writer Writer
	once   sync.Once
	err    error
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	})
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishSessionLogged(ctx context.Context, evt SessionLogged) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", EventSessionLogged, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.UserID, 10)),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventSessionLogged)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", EventSessionLogged, err)
	}
	return nil
}

// Close flushes and closes the underlying writer. Safe to call more than once.
func (p *KafkaPublisher) Close() error {
	p.once.Do(func() { p.err = p.writer.Close() })
	return p.err
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSessionLogged(context.Context, SessionLogged) error { return nil }
func (Nop) Close() error                                              { return nil }
