package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sent is one recorded group send.
type Sent struct {
	ConversationID uuid.UUID
	Envelope       Envelope
}

// Recorder is an in-memory Broadcaster that keeps every send.
// Err, when set, is returned from GroupSend after recording.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) GroupSend(_ context.Context, conversationID uuid.UUID, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{ConversationID: conversationID, Envelope: env})
	return r.Err
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns how many envelopes of the given type were sent.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Envelope.Type == eventType {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
