package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventIssueCreated  = "issue.created"
	EventIssueFixed    = "issue.fixed"
	EventIssueReopened = "issue.reopened"
	EventIssueDeleted  = "issue.deleted"
	EventActorDeleted  = "actor.deleted"
)

// Event is the JSON envelope written to the topic. Key is the id of the
// issue or actor the event is about.
type Event struct {
	Type       string            `json:"type"`
	Key        string            `json:"key"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       map[string]string `json:"data,omitempty"`
}

// Publisher is what the services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	log    *zap.Logger
}

func NewProducer(broker, topic string, log *zap.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

// Publish never fails the caller: the write has already been persisted by
// the time an event goes out, so errors are only logged.
func (p *Producer) Publish(ctx context.Context, evt Event) {
	if p == nil || p.writer == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("encode event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Key),
		Value: value,
		Time:  evt.OccurredAt,
	}); err != nil {
		p.log.Warn("publish event failed", zap.String("type", evt.Type), zap.String("key", evt.Key), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
