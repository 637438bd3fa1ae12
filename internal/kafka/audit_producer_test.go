package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"workchat/internal/audit"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestAuditProducerSendsEvent(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	mock := mocks.NewAsyncProducer(t, cfg)

	company := uuid.New()
	mock.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e audit.Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Verb != audit.VerbMessageCreated || e.CompanyID != company {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewAuditProducerFrom(mock, "chat.audit", nil)
	p.Record(context.Background(), audit.Event{
		ActorID:    uuid.New(),
		CompanyID:  company,
		Verb:       audit.VerbMessageCreated,
		TargetType: "message",
		TargetID:   "m1",
		OccurredAt: time.Now(),
	})

	select {
	case msg := <-mock.Successes():
		if msg.Topic != "chat.audit" {
			t.Fatalf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != company.String() {
			t.Fatalf("unexpected key %s", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message produced")
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

// stalledProducer accepts nothing on Input, like a producer whose buffer is full.
type stalledProducer struct {
	sarama.AsyncProducer
	input chan *sarama.ProducerMessage
	errs  chan *sarama.ProducerError
}

func (s *stalledProducer) Input() chan<- *sarama.ProducerMessage { return s.input }
func (s *stalledProducer) Errors() <-chan *sarama.ProducerError  { return s.errs }
func (s *stalledProducer) AsyncClose()                           { close(s.errs) }

func TestAuditProducerDropsWhenBufferFull(t *testing.T) {
	stalled := &stalledProducer{
		input: make(chan *sarama.ProducerMessage),
		errs:  make(chan *sarama.ProducerError),
	}
	p := NewAuditProducerFrom(stalled, "chat.audit", nil)

	done := make(chan struct{})
	go func() {
		p.Record(context.Background(), audit.Event{Verb: audit.VerbMessageCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full producer")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAuditProducerSurvivesBrokerErrors(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := NewAuditProducerFrom(mock, "chat.audit", nil)
	p.Record(context.Background(), audit.Event{Verb: audit.VerbMessageDeleted})

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
