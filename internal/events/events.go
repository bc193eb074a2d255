// Package events publishes resolution outcomes to Kafka for downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/jonathan/careers-finder/internal/resolver"
)

// DefaultTopic receives one message per resolved company.
const DefaultTopic = "careers.resolutions"

// Resolved is the message published for each company.
type Resolved struct {
	RunID      uuid.UUID       `json:"run_id"`
	Company    string          `json:"company"`
	Status     resolver.Status `json:"status"`
	URL        string          `json:"url,omitempty"`
	Score      float64         `json:"score"`
	Method     resolver.Method `json:"method,omitempty"`
	Keywords   []string        `json:"keywords,omitempty"`
	Positions  int             `json:"positions"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	At         time.Time       `json:"at"`
}

// NewResolved builds the message for res. err is the resolution error, if
// any; positions is the number of extracted openings.
func NewResolved(runID uuid.UUID, res resolver.Resolution, positions int, err error) Resolved {
	msg := Resolved{
		RunID:      runID,
		Company:    res.Company,
		Status:     res.Status,
		URL:        res.URL,
		Score:      res.Score,
		Method:     res.Method,
		Keywords:   res.Keywords,
		Positions:  positions,
		DurationMs: res.Duration.Milliseconds(),
		At:         time.Now().UTC(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

// Publisher sends Resolved messages.
type Publisher interface {
	Publish(ctx context.Context, msg Resolved) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes to a Kafka topic, keyed by company so a company's
// events stay ordered within a partition.
type Producer struct {
	writer messageWriter
}

// NewProducer creates a Producer for broker and topic.
func NewProducer(broker, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
	}
}

// NewProducerWithWriter builds a producer over a custom writer (tests).
func NewProducerWithWriter(writer messageWriter) *Producer {
	return &Producer{writer: writer}
}

// Publish implements Publisher.
func (p *Producer) Publish(ctx context.Context, msg Resolved) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Company),
		Value: payload,
		Time:  msg.At,
	}); err != nil {
		return fmt.Errorf("failed to publish resolution for %s: %w", msg.Company, err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Discard drops every message. It stands in when no broker is configured.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Resolved) error { return nil }

// Close implements Publisher.
func (Discard) Close() error { return nil }
