package request

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/application/executor"
	"github.com/doeshing/nixsay/internal/application/intent"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cache"
	"github.com/doeshing/nixsay/internal/infrastructure/knowledge"
)

type stubRecognizer struct{ kind domain.OperationKind }

func (s stubRecognizer) Recognize(_ context.Context, text string) domain.Intent {
	return domain.Intent{Kind: s.kind, Entities: map[string]string{}, Confidence: 1, RawText: text}
}

type recordingExecutor struct {
	mu      sync.Mutex
	seen    []domain.ExecutionContext
	explain string
}

func (r *recordingExecutor) Execute(_ context.Context, in domain.Intent, execCtx domain.ExecutionContext) domain.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, execCtx)
	return domain.Result{Success: true, Kind: in.Kind, Intent: in, Explanation: r.explain + " " + in.RawText}
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	failing bool
}

func (m *memoryHistory) Record(_ context.Context, record domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryHistory) Recent(context.Context, int) ([]domain.HistoryRecord, error) {
	return m.records, nil
}

func (m *memoryHistory) LastForSession(_ context.Context, sessionID string) (domain.HistoryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].SessionID == sessionID {
			return m.records[i], true, nil
		}
	}
	return domain.HistoryRecord{}, false, nil
}

func (m *memoryHistory) Search(context.Context, string, int) ([]domain.HistoryRecord, error) {
	return nil, nil
}

func (m *memoryHistory) Clear(context.Context) error                        { return nil }
func (m *memoryHistory) Retain(context.Context, time.Duration) (int, error) { return 0, nil }
func (m *memoryHistory) Close() error                                       { return nil }

func TestExecuteRequestDefaults(t *testing.T) {
	exec := &recordingExecutor{explain: "listed"}
	svc := &Service{Recognizer: stubRecognizer{kind: "list_installed"}, Executor: exec, DefaultTimeout: time.Minute}

	_, err := svc.ExecuteRequest(context.Background(), Request{Text: "list installed"})
	require.NoError(t, err)
	_, err = svc.ExecuteRequest(context.Background(), Request{Text: "list installed", Mode: domain.ModeExecute, SessionID: "s1", Timeout: time.Second})
	require.NoError(t, err)

	require.Equal(t, domain.ExecutionContext{Mode: domain.ModeDryRun, Timeout: time.Minute, SessionID: "default"}, exec.seen[0])
	require.Equal(t, domain.ExecutionContext{Mode: domain.ModeExecute, Timeout: time.Second, SessionID: "s1"}, exec.seen[1])
}

func TestExecuteRequestRequiresDependencies(t *testing.T) {
	_, err := (&Service{}).ExecuteRequest(context.Background(), Request{Text: "help"})
	require.Error(t, err)
}

func TestExecuteRequestRecordsHistory(t *testing.T) {
	history := &memoryHistory{}
	svc := &Service{Recognizer: stubRecognizer{kind: "check_status"}, Executor: &recordingExecutor{}, History: history}

	_, err := svc.ExecuteRequest(context.Background(), Request{Text: "status", SessionID: "s1", Mode: domain.ModeExecute})
	require.NoError(t, err)

	require.Len(t, history.records, 1)
	record := history.records[0]
	require.Equal(t, "s1", record.SessionID)
	require.Equal(t, "status", record.Text)
	require.Equal(t, domain.OperationKind("check_status"), record.Kind)
	require.Equal(t, domain.ModeExecute, record.Mode)
	require.True(t, record.Success)
	_, err = uuid.Parse(record.ID)
	require.NoError(t, err)
}

func TestHistoryFailureDoesNotFailRequest(t *testing.T) {
	svc := &Service{Recognizer: stubRecognizer{kind: "help"}, Executor: &recordingExecutor{}, History: &memoryHistory{failing: true}}

	res, err := svc.ExecuteRequest(context.Background(), Request{Text: "help"})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestExplainLast(t *testing.T) {
	history := &memoryHistory{}
	svc := &Service{Recognizer: stubRecognizer{kind: "help"}, Executor: &recordingExecutor{explain: "explained"}, History: history}

	_, ok := svc.ExplainLast(context.Background(), "s1")
	require.False(t, ok)

	_, err := svc.ExecuteRequest(context.Background(), Request{Text: "first", SessionID: "s1"})
	require.NoError(t, err)
	_, err = svc.ExecuteRequest(context.Background(), Request{Text: "second", SessionID: "s1"})
	require.NoError(t, err)
	_, err = svc.ExecuteRequest(context.Background(), Request{Text: "other", SessionID: "s2"})
	require.NoError(t, err)

	got, ok := svc.ExplainLast(context.Background(), "s1")
	require.True(t, ok)
	require.Equal(t, "explained second", got)

	// A new process only has history to go on.
	fresh := &Service{Recognizer: stubRecognizer{kind: "help"}, Executor: &recordingExecutor{}, History: history}
	got, ok = fresh.ExplainLast(context.Background(), "s2")
	require.True(t, ok)
	require.Equal(t, "explained other", got)
}

func TestUnknownRequestsAreNoMatch(t *testing.T) {
	kb, err := knowledge.Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	svc := &Service{
		Recognizer: intent.NewRecognizer(kb, 0, nil),
		Executor:   executor.New(executor.Options{KnowledgeBase: kb, Cache: cache.New(cache.Options{})}),
	}

	for _, text := range []string{"frobnicate the quux", "", "   ", "qwerty asdf"} {
		for _, mode := range []domain.Mode{domain.ModeDryRun, domain.ModeExecute, domain.ModeExplain} {
			res, err := svc.ExecuteRequest(context.Background(), Request{Text: text, Mode: mode})
			require.NoError(t, err)
			require.False(t, res.Success, text)
			require.Equal(t, domain.ErrNoMatch, res.Error, text)
			require.Equal(t, domain.ExitNoMatch, res.ExitCode())
		}
	}
}
