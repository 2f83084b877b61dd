package debate

import "testing"

func TestParseEventKinds(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name:    "system",
			payload: `{"event": "system", "text": "剧本围读会议开始"}`,
			want:    Event{Kind: KindSystem, Text: "剧本围读会议开始"},
		},
		{
			name:    "agent start",
			payload: `{"event": "agent_start", "agent": "villain", "name": "反派主脑"}`,
			want:    Event{Kind: KindAgentStart, Agent: "villain", Name: "反派主脑"},
		},
		{
			name:    "token",
			payload: `{"event": "token", "agent": "villain", "text": "你"}`,
			want:    Event{Kind: KindToken, Agent: "villain", Text: "你"},
		},
		{
			name:    "agent done",
			payload: `{"event": "agent_done", "agent": "villain"}`,
			want:    Event{Kind: KindAgentDone, Agent: "villain"},
		},
		{
			name:    "error",
			payload: `{"event": "error", "agent": "system", "text": "模型服务未初始化"}`,
			want:    Event{Kind: KindError, Agent: "system", Text: "模型服务未初始化"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent(tt.payload)
			if err != nil {
				t.Fatalf("ParseEvent returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseEvent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseEventMalformedJSON(t *testing.T) {
	for _, payload := range []string{
		"",
		"{",
		`{"event": "token"`,
		`"just a string"`,
		`[1, 2, 3]`,
	} {
		if _, err := ParseEvent(payload); err == nil {
			t.Errorf("ParseEvent(%q) expected error, got nil", payload)
		}
	}
}

func TestParseEventUnknownKind(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`{"event": "heartbeat"}`,
		`{"text": "no discriminant"}`,
	} {
		ev, err := ParseEvent(payload)
		if err != nil {
			t.Fatalf("ParseEvent(%q) returned error: %v", payload, err)
		}
		if ev.Kind != KindNone {
			t.Errorf("ParseEvent(%q) kind = %q, want KindNone", payload, ev.Kind)
		}
	}
}

func TestParseEventMissingFieldsDefaultEmpty(t *testing.T) {
	ev, err := ParseEvent(`{"event": "token"}`)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if ev.Text != "" || ev.Agent != "" || ev.Name != "" {
		t.Fatalf("expected empty optional fields, got %+v", ev)
	}
}
