package kafka

import (
	"context"
	"sync"

	"workchat/internal/audit"
	"workchat/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// AuditProducer is an audit.Sink that ships events to a Kafka topic.
// Events are keyed by company so one tenant's history stays in order.
type AuditProducer struct {
	producer sarama.AsyncProducer
	topic    string
	log      *logger.Logger
	wg       sync.WaitGroup
}

func NewAuditProducer(brokers []string, topic, clientID string, l *logger.Logger) (*AuditProducer, error) {
	producer, err := sarama.NewAsyncProducer(brokers, newProducerConfig(clientID))
	if err != nil {
		return nil, err
	}
	return NewAuditProducerFrom(producer, topic, l), nil
}

// NewAuditProducerFrom wraps an existing producer.
func NewAuditProducerFrom(producer sarama.AsyncProducer, topic string, l *logger.Logger) *AuditProducer {
	p := &AuditProducer{
		producer: producer,
		topic:    topic,
		log:      logger.OrNop(l),
	}
	p.wg.Add(1)
	go p.drainErrors()
	return p
}

func (p *AuditProducer) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		p.log.Logger.Warn("audit event not delivered",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err))
	}
}

// Record never waits on Kafka. When the producer's input buffer is full the
// event is dropped.
func (p *AuditProducer) Record(ctx context.Context, e audit.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.WithContext(ctx).Warn("audit event encode failed", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.CompanyID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("verb"), Value: []byte(e.Verb)},
		},
	}

	select {
	case p.producer.Input() <- msg:
	default:
		p.log.WithContext(ctx).Warn("audit event dropped, producer buffer full", zap.String("verb", e.Verb))
	}
}

// Close flushes buffered events and waits for the error drain to finish.
func (p *AuditProducer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
