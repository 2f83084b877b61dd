// Package sim is a scripted debate room producer for local development
// and end-to-end testing. It speaks the same wire protocol as the real
// backend but replays canned replies instead of calling a model.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Speaker is one scripted participant.
type Speaker struct {
	Agent string
	Name  string
	Reply string
}

// DefaultScript mirrors the speaker lineup of the real debate room.
func DefaultScript(topic string) []Speaker {
	return []Speaker{
		{Agent: "reader", Name: "挑剔的读者", Reply: fmt.Sprintf("围绕「%s」，读者最在意的是节奏：前半段铺垫太长，爽点来得太晚，建议把冲突提前一章引爆。", topic)},
		{Agent: "villain", Name: "反派主脑", Reply: "反派视角下这一步太便宜主角了。让他赢，但让他赢得付出代价，后续压迫才立得住。"},
		{Agent: "architect", Name: "世界观架构师", Reply: "设定层面没有硬伤，但第二章埋的符文伏笔到现在还没回收，建议在本段落点一笔。"},
		{Agent: "director", Name: "主编导演", Reply: "综合三位意见：冲突前移、胜利加代价、顺手回收符文伏笔。按这三条改，本章就能落地。"},
	}
}

// ServerOption configures the simulator.
type ServerOption func(*Server)

// WithDelay sets the pause between streamed frames. Zero means no
// pacing, which is what tests want.
func WithDelay(d time.Duration) ServerOption {
	return func(s *Server) {
		s.delay = d
	}
}

// WithScript replaces the default speaker script.
func WithScript(script func(topic string) []Speaker) ServerOption {
	return func(s *Server) {
		s.script = script
	}
}

// Server replays a scripted debate over SSE.
type Server struct {
	logger *slog.Logger
	script func(topic string) []Speaker
	delay  time.Duration
}

// New creates a simulator.
func New(logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		logger: logger,
		script: DefaultScript,
		delay:  40 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the simulator's HTTP routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/api/debate/start", s.handleStart)
	return r
}

type startRequest struct {
	ProjectID string `json:"project_id"`
	Topic     string `json:"topic"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	s.logger.Info("debate started",
		slog.String("project_id", req.ProjectID),
		slog.String("topic", req.Topic),
	)

	es := &eventStream{w: w, flusher: flusher, ctx: r.Context(), delay: s.delay}

	es.send(map[string]any{"event": "system", "text": "剧本围读会议开始，各 Agent 就位..."})
	for _, sp := range s.script(req.Topic) {
		es.send(map[string]any{"event": "agent_start", "agent": sp.Agent, "name": sp.Name})
		for _, chunk := range chunkRunes(sp.Reply, 4) {
			es.send(map[string]any{"event": "token", "agent": sp.Agent, "text": chunk})
		}
		es.send(map[string]any{"event": "agent_done", "agent": sp.Agent})
	}
	es.send(map[string]any{"event": "system", "text": "围读会议结束"})
}

type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	delay   time.Duration
}

func (es *eventStream) send(payload map[string]any) {
	if es.ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(es.w, "data: %s\n\n", data)
	es.flusher.Flush()
	if es.delay > 0 {
		time.Sleep(es.delay)
	}
}

// chunkRunes splits s into chunks of at most n runes, never mid-rune.
func chunkRunes(s string, n int) []string {
	var chunks []string
	runes := []rune(s)
	for len(runes) > 0 {
		size := n
		if size > len(runes) {
			size = len(runes)
		}
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	return chunks
}
