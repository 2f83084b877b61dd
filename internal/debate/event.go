package debate

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the frame types the debate producer emits.
type EventKind string

const (
	// KindNone marks a frame that parsed as JSON but carries no
	// recognized event discriminant. Callers skip it silently.
	KindNone EventKind = ""

	KindSystem     EventKind = "system"
	KindAgentStart EventKind = "agent_start"
	KindToken      EventKind = "token"
	KindAgentDone  EventKind = "agent_done"
	KindError      EventKind = "error"
)

// Event is one parsed instruction from the debate stream. Fields not
// present on the wire are left empty; no event kind requires all of them.
type Event struct {
	Kind  EventKind
	Agent string
	Name  string
	Text  string
}

// eventEnvelope mirrors the wire shape of a frame payload. Every field
// is optional; absent fields decode to their zero value.
type eventEnvelope struct {
	Event string `json:"event"`
	Agent string `json:"agent"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// ParseEvent decodes one frame payload. Malformed JSON returns a non-nil
// error; the caller is expected to log it and drop the frame. A payload
// that is valid JSON but names no known event kind returns an Event with
// KindNone and no error.
func ParseEvent(payload string) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Event{}, fmt.Errorf("decode event frame: %w", err)
	}

	switch EventKind(env.Event) {
	case KindSystem, KindAgentStart, KindToken, KindAgentDone, KindError:
		return Event{
			Kind:  EventKind(env.Event),
			Agent: env.Agent,
			Name:  env.Name,
			Text:  env.Text,
		}, nil
	default:
		return Event{Kind: KindNone}, nil
	}
}
