// Package audit records who did what to which chat resource.
// Sinks are fire-and-forget: Record never fails the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"workchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verbs recorded by the chat services
const (
	VerbConversationCreated = "conversation.created"
	VerbConversationUpdated = "conversation.updated"
	VerbConversationDeleted = "conversation.deleted"
	VerbParticipantAdded    = "participant.added"
	VerbParticipantLeft     = "participant.left"
	VerbParticipantRemoved  = "participant.removed"
	VerbInvitationCreated   = "invitation.created"
	VerbInvitationAccepted  = "invitation.accepted"
	VerbInvitationDeclined  = "invitation.declined"
	VerbMessageCreated      = "message.created"
	VerbMessageEdited       = "message.edited"
	VerbMessageDeleted      = "message.deleted"
)

type Event struct {
	ActorID    uuid.UUID              `json:"actor_id"`
	CompanyID  uuid.UUID              `json:"company_id"`
	Verb       string                 `json:"verb"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Sink interface {
	Record(ctx context.Context, event Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}

// LogSink writes events to the structured log.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(l *logger.Logger) *LogSink {
	return &LogSink{log: logger.OrNop(l)}
}

func (s *LogSink) Record(ctx context.Context, e Event) {
	s.log.WithContext(ctx).Info("audit",
		zap.String("actor_id", e.ActorID.String()),
		zap.String("company_id", e.CompanyID.String()),
		zap.String("verb", e.Verb),
		zap.String("target_type", e.TargetType),
		zap.String("target_id", e.TargetID),
		zap.Any("extra", e.Extra),
		zap.Time("occurred_at", e.OccurredAt))
}

// Recorder keeps events in memory. Tests only.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Record(_ context.Context, e Event) {
	r.mu.Lock()
	r.Events = append(r.Events, e)
	r.mu.Unlock()
}

// Verbs lists recorded verbs in order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Verb)
	}
	return out
}

// OrNop lets services accept a nil sink.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}
