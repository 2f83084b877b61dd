package debate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storyloom/debatestream/internal/sse"
)

// Precondition failures, reported before any request is issued.
var (
	ErrMissingProject = errors.New("debate: project id is required")
	ErrEmptyTopic     = errors.New("debate: free text and quoted text are both empty")
)

// startRequest is the wire shape of the debate start call.
type startRequest struct {
	ProjectID string `json:"project_id"`
	Topic     string `json:"topic"`
}

// Outcome is the terminal result of a session: completed, or failed
// with a reason. A session reports it exactly once.
type Outcome struct {
	// Err is nil when the stream ran to a clean end.
	Err error
}

// Completed reports whether the stream ended normally.
func (o Outcome) Completed() bool { return o.Err == nil }

// Session is one live debate exchange. A single goroutine consumes the
// event stream and applies it to the transcript in arrival order;
// snapshots are published on the Updates channel.
type Session struct {
	transcript *Transcript
	updates    chan []Message
	cancel     context.CancelFunc
	logger     *slog.Logger

	// outcome is written by the stream goroutine before updates is
	// closed; the close is the synchronization point for readers.
	outcome Outcome
}

// Begin starts one debate. Preconditions are checked before any network
// activity; on success exactly one streaming request has been issued and
// the returned session is live. The caller's query is already recorded
// in the transcript when Begin returns.
func (c *Client) Begin(ctx context.Context, req Request) (*Session, error) {
	if req.ProjectID == "" {
		return nil, ErrMissingProject
	}
	if req.Empty() {
		return nil, ErrEmptyTopic
	}

	topic := req.Topic()
	body, err := json.Marshal(startRequest{ProjectID: req.ProjectID, Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("marshal start request: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sessCtx, span := otel.Tracer("debatestream").Start(sessCtx, "debate.session",
		trace.WithAttributes(attribute.String("debate.project_id", req.ProjectID)))

	httpReq, err := http.NewRequestWithContext(sessCtx, http.MethodPost, c.baseURL+"/api/debate/start", bytes.NewReader(body))
	if err != nil {
		span.End()
		cancel()
		return nil, fmt.Errorf("create start request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.End()
		cancel()
		return nil, fmt.Errorf("start debate: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		span.End()
		cancel()
		return nil, fmt.Errorf("debate API error (status %d): %s", resp.StatusCode, respBody)
	}

	s := &Session{
		transcript: NewTranscript(),
		updates:    make(chan []Message, 1),
		cancel:     cancel,
		logger:     c.logger,
	}
	s.transcript.AppendUser(topic)
	s.publish(sessCtx)

	go s.run(sessCtx, resp.Body, span)
	return s, nil
}

// Updates returns the snapshot channel. Intermediate snapshots may be
// coalesced when the consumer lags, but every state transition is
// reflected in the next snapshot it receives, and the final snapshot is
// always delivered. The channel closes when the session reaches its
// terminal outcome.
func (s *Session) Updates() <-chan []Message {
	return s.updates
}

// Outcome returns the terminal result. It is valid only after the
// Updates channel has closed.
func (s *Session) Outcome() Outcome {
	return s.outcome
}

// Abandon stops the session. No further snapshots are delivered after
// Abandon returns, even if the transport takes time to wind down.
func (s *Session) Abandon() {
	s.cancel()
}

func (s *Session) run(ctx context.Context, body io.ReadCloser, span trace.Span) {
	var dropped int

	defer close(s.updates)
	defer func() {
		span.SetAttributes(
			attribute.Int("debate.dropped_frames", dropped),
			attribute.Int("debate.messages", s.transcript.Len()),
			attribute.Bool("debate.completed", s.outcome.Completed()),
		)
		span.End()
		s.cancel()
	}()
	defer body.Close()

	dec := sse.NewDecoder(body)
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			s.outcome = Outcome{}
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			s.outcome = Outcome{Err: fmt.Errorf("debate stream: %w", err)}
			return
		}

		ev, err := ParseEvent(frame)
		if err != nil {
			// Malformed frames are noise; the stream goes on.
			dropped++
			s.logger.Debug("dropping malformed debate frame",
				slog.String("error", err.Error()),
			)
			continue
		}
		if ev.Kind == KindNone {
			continue
		}

		s.transcript.Apply(ev)
		s.publish(ctx)
	}
}

// publish offers the current snapshot on the updates channel,
// replacing a stale pending snapshot rather than blocking the stream.
// After abandonment nothing is forwarded.
func (s *Session) publish(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap := s.transcript.Snapshot()
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
