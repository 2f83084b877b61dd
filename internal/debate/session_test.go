package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// streamHandler writes the given lines as an SSE response, flushing
// after each one.
func streamHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/debate/start" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}
}

// lastSnapshot drains the session's updates and returns the final one.
func lastSnapshot(t *testing.T, s *Session) []Message {
	t.Helper()
	var last []Message
	for snap := range s.Updates() {
		last = snap
	}
	return last
}

func TestBeginFullAgentTurn(t *testing.T) {
	bodyCh := make(chan startRequest, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body startRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		bodyCh <- body
		streamHandler(t, []string{
			`data: {"event": "agent_start", "agent": "villain", "name": "反派"}`,
			``,
			`data: {"event": "token", "agent": "villain", "text": "你"}`,
			``,
			`data: {"event": "token", "agent": "villain", "text": "好"}`,
			``,
			`data: {"event": "agent_done", "agent": "villain"}`,
			``,
		})(w, r)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	s, err := c.Begin(context.Background(), Request{ProjectID: "proj_1", FreeText: "主角该不该黑化"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	snap := lastSnapshot(t, s)
	if !s.Outcome().Completed() {
		t.Fatalf("expected completed outcome, got %v", s.Outcome().Err)
	}

	gotBody := <-bodyCh
	if gotBody.ProjectID != "proj_1" || gotBody.Topic != "主角该不该黑化" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}

	if len(snap) != 2 {
		t.Fatalf("expected user + agent messages, got %d: %+v", len(snap), snap)
	}
	if snap[0].Speaker != SpeakerUser || snap[0].Text != "主角该不该黑化" {
		t.Fatalf("unexpected user message: %+v", snap[0])
	}
	agent := snap[1]
	if agent.DisplayName != "反派" || agent.Text != "你好" || !agent.Complete {
		t.Fatalf("unexpected agent message: %+v", agent)
	}
}

func TestBeginSystemOnlyStream(t *testing.T) {
	ts := httptest.NewServer(streamHandler(t, []string{
		`data: {"event": "system", "text": "开始辩论"}`,
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	s, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	snap := lastSnapshot(t, s)
	if !s.Outcome().Completed() {
		t.Fatalf("expected completed outcome, got %v", s.Outcome().Err)
	}
	if len(snap) != 2 {
		t.Fatalf("expected user + system messages, got %+v", snap)
	}
	sys := snap[1]
	if sys.Category != CategorySystem || sys.Text != "开始辩论" || !sys.Complete {
		t.Fatalf("unexpected system message: %+v", sys)
	}
}

func TestBeginPreconditionsSkipNetwork(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))

	if _, err := c.Begin(context.Background(), Request{FreeText: "topic"}); !errors.Is(err, ErrMissingProject) {
		t.Fatalf("expected ErrMissingProject, got %v", err)
	}
	if _, err := c.Begin(context.Background(), Request{ProjectID: "p"}); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
	if _, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "  ", QuotedText: " "}); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic for whitespace-only request, got %v", err)
	}

	if n := requests.Load(); n != 0 {
		t.Fatalf("expected no requests, server saw %d", n)
	}
}

func TestBeginRejectsNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "project not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	if _, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMidStreamTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"event\": \"agent_start\", \"agent\": \"reader\", \"name\": \"读者\"}\n")
		fmt.Fprint(w, "data: {\"event\": \"token\", \"text\": \"开\"}\n")
		flusher.Flush()
		panic(http.ErrAbortHandler)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	s, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	snap := lastSnapshot(t, s)
	if s.Outcome().Completed() {
		t.Fatal("expected failed outcome after aborted transport")
	}
	if len(snap) != 2 {
		t.Fatalf("expected user + open agent message, got %+v", snap)
	}
	if snap[1].Complete {
		t.Fatal("interrupted agent message should remain incomplete")
	}
	if snap[1].Text != "开" {
		t.Fatalf("interrupted agent text = %q", snap[1].Text)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	ts := httptest.NewServer(streamHandler(t, []string{
		`data: {"event": "system", "text": "ok"}`,
		`data: {not json`,
		`data: "a bare string"`,
		`data: {"event": "unknown_kind"}`,
		`data: {"event": "system", "text": "still ok"}`,
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	s, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	snap := lastSnapshot(t, s)
	if !s.Outcome().Completed() {
		t.Fatalf("noise should not fail the session: %v", s.Outcome().Err)
	}
	if len(snap) != 3 {
		t.Fatalf("expected user + 2 system messages, got %+v", snap)
	}
	if snap[1].Text != "ok" || snap[2].Text != "still ok" {
		t.Fatalf("unexpected messages: %+v", snap)
	}
}

func TestAbandonStopsUpdates(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"event\": \"system\", \"text\": \"first\"}\n")
		flusher.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(WithBaseURL(ts.URL))
	s, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	// Wait for the first streamed snapshot, then walk away.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-s.Updates():
			if !ok {
				t.Fatal("updates closed before first snapshot")
			}
			if len(snap) == 2 {
				s.Abandon()
				goto abandoned
			}
		case <-deadline:
			t.Fatal("timed out waiting for first snapshot")
		}
	}

abandoned:
	// The channel must close; the terminal outcome is failed since the
	// stream never ran to completion.
	select {
	case _, ok := <-s.Updates():
		if ok {
			// A snapshot published before Abandon may still be
			// buffered; the next receive must observe the close.
			if _, ok := <-s.Updates(); ok {
				t.Fatal("received snapshot after Abandon")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("updates channel did not close after Abandon")
	}
	if s.Outcome().Completed() {
		t.Fatal("abandoned session should not report completed")
	}
}

func TestBeginTransportRefused(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	if _, err := c.Begin(context.Background(), Request{ProjectID: "p", FreeText: "q"}); err == nil {
		t.Fatal("expected error when connection is refused")
	}
}
