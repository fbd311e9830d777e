// Package request is the single entry point presentation layers call: it recognizes
// the text, runs the executor, remembers the explanation per session and records
// history.
package request

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// Request is one natural-language request.
type Request struct {
	Text      string
	Mode      domain.Mode
	SessionID string
	// Timeout bounds execution; zero selects DefaultTimeout.
	Timeout time.Duration
}

// Service orchestrates the request lifecycle end-to-end.
type Service struct {
	Recognizer ports.IntentRecognizer
	Executor   ports.OperationExecutor
	// History is optional.
	History        ports.HistoryRepository
	Logger         ports.Logger
	DefaultTimeout time.Duration
	Now            func() time.Time

	mu   sync.Mutex
	last map[string]string
}

// ExecuteRequest handles one request and always returns a Result. Only a miswired
// Service yields a non-nil error.
func (s *Service) ExecuteRequest(ctx context.Context, req Request) (domain.Result, error) {
	if s.Recognizer == nil || s.Executor == nil {
		return domain.Result{}, errors.New("request.Service dependencies not satisfied")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeDryRun
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = domain.DefaultRequestTimeout
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	requestID := uuid.NewString()
	started := s.now()
	in := s.Recognizer.Recognize(ctx, req.Text)
	s.debug("intent recognized", map[string]interface{}{
		"request_id": requestID,
		"session_id": sessionID,
		"kind":       string(in.Kind),
		"confidence": in.Confidence,
		"tier":       in.Tier,
	})

	result := s.Executor.Execute(ctx, in, domain.ExecutionContext{
		Mode:      mode,
		Timeout:   timeout,
		SessionID: sessionID,
	})

	s.remember(sessionID, result.Explanation)
	s.record(ctx, domain.HistoryRecord{
		ID:          requestID,
		SessionID:   sessionID,
		Timestamp:   started,
		Text:        req.Text,
		Kind:        result.Kind,
		Mode:        mode,
		Success:     result.Success,
		Error:       result.Error,
		FromCache:   result.FromCache,
		CommandsRun: result.CommandsRun,
		Explanation: result.Explanation,
		DurationMS:  s.now().Sub(started).Milliseconds(),
	})
	return result, nil
}

// ExplainLast returns the explanation of the session's most recent request. Requests
// made by earlier processes are found through history.
func (s *Service) ExplainLast(ctx context.Context, sessionID string) (string, bool) {
	if sessionID == "" {
		sessionID = "default"
	}
	s.mu.Lock()
	explanation, ok := s.last[sessionID]
	s.mu.Unlock()
	if ok {
		return explanation, true
	}
	if s.History == nil {
		return "", false
	}
	record, found, err := s.History.LastForSession(ctx, sessionID)
	if err != nil {
		s.warn("history lookup failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return "", false
	}
	if !found {
		return "", false
	}
	return record.Explanation, true
}

func (s *Service) remember(sessionID, explanation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = map[string]string{}
	}
	s.last[sessionID] = explanation
}

// record never fails the request; history is best effort.
func (s *Service) record(ctx context.Context, record domain.HistoryRecord) {
	if s.History == nil {
		return
	}
	if err := s.History.Record(ctx, record); err != nil {
		s.warn("history record failed", map[string]interface{}{"request_id": record.ID, "error": err.Error()})
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) debug(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Debug(msg, fields)
	}
}

func (s *Service) warn(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields)
	}
}
