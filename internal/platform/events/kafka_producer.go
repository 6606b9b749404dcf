package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

const queueSize = 1000

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events asynchronously. Publish never blocks; when the
// queue is full the event is dropped and logged.
type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      sync.WaitGroup
	closeOnce sync.Once
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newProducer(writer, logger, queueSize)
}

func newProducer(writer KafkaWriter, logger *zap.Logger, size int) *Producer {
	p := &Producer{
		writer:    writer,
		events:    make(chan Event, size),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}
	p.done.Add(1)
	go p.eventLoop()
	return p
}

func (p *Producer) Publish(_ context.Context, event Event) {
	select {
	case <-p.closeChan:
		p.logger.Warn("kafka producer closed, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
		)
		return
	default:
	}

	select {
	case p.events <- event:
	default:
		p.logger.Warn("kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
		)
	}
}

func (p *Producer) eventLoop() {
	defer p.done.Done()
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			for {
				select {
				case event := <-p.events:
					p.sendEvent(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("failed to serialize event",
			zap.Error(err),
			zap.String("entity_id", event.EntityID),
		)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind + ":" + event.EntityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.logger.Error("failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
		)
	}
}

// Close flushes queued events and closes the writer.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.closeChan)
		p.done.Wait()
		if err := p.writer.Close(); err != nil {
			p.logger.Error("failed to close kafka writer", zap.Error(err))
		}
	})
}
