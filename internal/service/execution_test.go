package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/model"
	"github.com/sakif/coderunner/internal/repository"
)

// mockExecutionRepo keeps history in memory and can be told to fail.
type mockExecutionRepo struct {
	mu         sync.Mutex
	executions []model.Execution
	createErr  error
	pruneCalls []int
	lastCtxErr error
}

func (m *mockExecutionRepo) Create(ctx context.Context, e *model.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	if e.ID == "" {
		e.ID = "generated"
	}
	m.executions = append(m.executions, *e)
	return nil
}

func (m *mockExecutionRepo) GetByID(_ context.Context, id string) (*model.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.executions {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, apperror.NotFound("execution", id)
}

func (m *mockExecutionRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Offset >= len(m.executions) {
		return []model.Execution{}, nil
	}
	out := m.executions[opts.Offset:]
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return append([]model.Execution(nil), out...), nil
}

func (m *mockExecutionRepo) Prune(_ context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneCalls = append(m.pruneCalls, keep)
	return 0, nil
}

// fakeExecutor returns a canned result and remembers what it was asked.
type fakeExecutor struct {
	result executor.Result
	calls  []executor.Request
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) executor.Result {
	f.calls = append(f.calls, req)
	res := f.result
	if res.Language == "" {
		res.Language = req.Language
	}
	return res
}

func newTestService(exec executor.Executor, repo repository.ExecutionRepository, opts Options) *ExecutionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExecutionService(exec, repo, logger, opts)
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"empty", "", "No code provided"},
		{"whitespace only", " \n\t", "No code provided"},
		{"too large", strings.Repeat("x", 11), "code must be 10 bytes or less"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			repo := &mockExecutionRepo{}
			svc := newTestService(exec, repo, Options{MaxSourceBytes: 10})

			_, err := svc.Execute(context.Background(), executor.Request{Source: tt.source, Language: "python"}, "")

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Empty(t, exec.calls, "executor must not run on invalid input")
			assert.Empty(t, repo.executions)
		})
	}
}

func TestExecute_DefaultsToPython(t *testing.T) {
	exec := &fakeExecutor{result: executor.Result{Status: executor.StatusSuccess}}
	svc := newTestService(exec, nil, Options{})

	_, err := svc.Execute(context.Background(), executor.Request{Source: "print(1)"}, "")

	require.NoError(t, err)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "python", exec.calls[0].Language)
}

func TestExecute_RecordsHistory(t *testing.T) {
	exec := &fakeExecutor{result: executor.Result{
		ID:        "abc123",
		Language:  "go",
		Status:    executor.StatusRuntimeError,
		Phase:     executor.PhaseRun,
		Stdout:    "partial\n",
		ExitCode:  2,
		Duration:  1500 * time.Millisecond,
		Truncated: true,
	}}
	repo := &mockExecutionRepo{}
	svc := newTestService(exec, repo, Options{HistoryLimit: 50})

	res, err := svc.Execute(context.Background(), executor.Request{Source: "package main", Language: "go"}, "ci-bot")

	require.NoError(t, err)
	assert.Equal(t, executor.StatusRuntimeError, res.Status)
	require.Len(t, repo.executions, 1)
	got := repo.executions[0]
	assert.Equal(t, "abc123", got.ID)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, "runtime_error", got.Status)
	assert.Equal(t, "run", got.Phase)
	assert.Equal(t, 2, got.ExitCode)
	assert.Equal(t, int64(1500), got.DurationMS)
	assert.Equal(t, len("package main"), got.SourceSize)
	assert.Equal(t, len("partial\n"), got.OutputSize)
	assert.True(t, got.Truncated)
	assert.Equal(t, "ci-bot", got.Client)
	assert.Equal(t, []int{50}, repo.pruneCalls)
}

func TestExecute_RecordFailureDoesNotChangeResult(t *testing.T) {
	want := executor.Result{ID: "x", Language: "python", Status: executor.StatusSuccess, Stdout: "hi\n"}
	exec := &fakeExecutor{result: want}
	repo := &mockExecutionRepo{createErr: errors.New("disk full")}
	svc := newTestService(exec, repo, Options{HistoryLimit: 10})

	res, err := svc.Execute(context.Background(), executor.Request{Source: "print('hi')", Language: "python"}, "")

	require.NoError(t, err)
	assert.Equal(t, want, res)
	assert.Empty(t, repo.pruneCalls)
}

func TestExecute_RecordsAfterClientDisconnect(t *testing.T) {
	exec := &fakeExecutor{result: executor.Result{ID: "c1", Status: executor.StatusCanceled}}
	repo := &mockExecutionRepo{}
	svc := newTestService(exec, repo, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Execute(ctx, executor.Request{Source: "x", Language: "ruby"}, "")

	require.NoError(t, err)
	require.Len(t, repo.executions, 1)
	assert.NoError(t, repo.lastCtxErr)
	assert.Empty(t, repo.pruneCalls, "zero HistoryLimit keeps everything")
}

func TestExecute_NotSupportedIsAResult(t *testing.T) {
	exec := &fakeExecutor{result: executor.Result{Status: executor.StatusNotSupported, Message: "Unsupported language: cobol"}}
	repo := &mockExecutionRepo{}
	svc := newTestService(exec, repo, Options{})

	res, err := svc.Execute(context.Background(), executor.Request{Source: "x", Language: " COBOL "}, "")

	require.NoError(t, err)
	assert.Equal(t, executor.StatusNotSupported, res.Status)
	require.Len(t, repo.executions, 1)
	assert.Equal(t, "not_supported", repo.executions[0].Status)
}

func TestGetByID(t *testing.T) {
	repo := &mockExecutionRepo{executions: []model.Execution{{ID: "e1", Language: "c"}}}
	svc := newTestService(&fakeExecutor{}, repo, Options{})

	got, err := svc.GetByID(context.Background(), " e1 ")
	require.NoError(t, err)
	assert.Equal(t, "c", got.Language)

	_, err = svc.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = svc.GetByID(context.Background(), "  ")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestGetByID_WithoutHistory(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, nil, Options{})

	_, err := svc.GetByID(context.Background(), "e1")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestList_ClampsPagination(t *testing.T) {
	repo := &mockExecutionRepo{}
	for i := 0; i < 150; i++ {
		repo.executions = append(repo.executions, model.Execution{ID: string(rune('a' + i%26))})
	}
	svc := newTestService(&fakeExecutor{}, repo, Options{})

	tests := []struct {
		name          string
		limit, offset int
		wantLen       int
	}{
		{"default limit", 0, 0, DefaultListLimit},
		{"max limit", 1000, 0, MaxListLimit},
		{"negative offset", 5, -1, 5},
		{"near end", 20, 140, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestList_WithoutHistory(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, nil, Options{})

	got, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
