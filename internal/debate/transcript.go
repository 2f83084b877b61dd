package debate

import (
	"github.com/google/uuid"
)

// Speaker kinds with fixed rendering semantics. Agent speakers carry
// whatever kind the producer declared (reader, villain, architect, ...).
const (
	SpeakerUser   = "user"
	SpeakerSystem = "system"
)

// Category controls which rendering affordances a message gets.
type Category string

const (
	CategorySystem Category = "system"
	CategoryAgent  Category = "agent"
)

// defaultErrorText stands in for an error event that carries no text.
const defaultErrorText = "unknown error"

// Message is one transcript entry. Text and Complete mutate in place
// while the message is active; everything else is fixed at creation.
type Message struct {
	ID          string
	Speaker     string
	DisplayName string
	Text        string
	Complete    bool
	Category    Category
}

// Transcript is the ordered, append-only record of a debate session.
// At most one message is active (receiving token events) at a time,
// tracked by an explicit id slot rather than inferred from the list.
//
// Transcript is not safe for concurrent use; a session applies events
// from a single goroutine and hands out snapshots instead.
type Transcript struct {
	messages []*Message
	activeID string
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

func newMessageID() string {
	return "msg_" + uuid.New().String()
}

// AppendUser records the caller's own query as a complete message, so
// the question precedes the answers in the transcript.
func (t *Transcript) AppendUser(text string) {
	t.messages = append(t.messages, &Message{
		ID:          newMessageID(),
		Speaker:     SpeakerUser,
		DisplayName: SpeakerUser,
		Text:        text,
		Complete:    true,
		Category:    CategoryAgent,
	})
}

// Apply runs one event through the state machine. Events that have no
// valid target (a token with no open turn, a done with no open turn,
// an unrecognized kind) are no-ops; Apply never fails.
func (t *Transcript) Apply(ev Event) {
	switch ev.Kind {
	case KindSystem:
		t.appendSystem(ev.Text)

	case KindAgentStart:
		// A still-open previous turn stays permanently incomplete.
		// The producer is not expected to interleave turns, but the
		// machine must not corrupt state if it does.
		msg := &Message{
			ID:          newMessageID(),
			Speaker:     ev.Agent,
			DisplayName: ev.Name,
			Category:    CategoryAgent,
		}
		t.messages = append(t.messages, msg)
		t.activeID = msg.ID

	case KindToken:
		if msg := t.active(); msg != nil {
			msg.Text += ev.Text
		}

	case KindAgentDone:
		if msg := t.active(); msg != nil {
			msg.Complete = true
			t.activeID = ""
		}

	case KindError:
		text := ev.Text
		if text == "" {
			text = defaultErrorText
		}
		t.appendSystem(text)
	}
}

func (t *Transcript) appendSystem(text string) {
	t.messages = append(t.messages, &Message{
		ID:          newMessageID(),
		Speaker:     SpeakerSystem,
		DisplayName: SpeakerSystem,
		Text:        text,
		Complete:    true,
		Category:    CategorySystem,
	})
}

func (t *Transcript) active() *Message {
	if t.activeID == "" {
		return nil
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == t.activeID {
			return t.messages[i]
		}
	}
	return nil
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Snapshot returns a value copy of the transcript, safe to hand to
// other goroutines or retain after the session ends.
func (t *Transcript) Snapshot() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}
