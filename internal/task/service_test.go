package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

type fakePipeline struct {
	result *domain.AnalysisResult
	err    error
}

func (f *fakePipeline) ProcessSingleStock(ctx context.Context, code, queryID, reportType string, notify bool) (*domain.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.QueryID = queryID
	return &r, nil
}

func waitForStatus(t *testing.T, s *Service, id string, want domain.TaskStatus) domain.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := s.GetTaskStatus(id)
		if ok && task.Status == want {
			return task
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s did not reach status %s in time", id, want)
	return domain.Task{}
}

func TestService_Submit_CompletesSuccessfully(t *testing.T) {
	pipeline := &fakePipeline{result: &domain.AnalysisResult{Success: true}}
	s := NewService(pipeline, nil, 1, zerolog.Nop())

	task := s.Submit("600519", "simple", "", "test")
	require.NotEmpty(t, task.ID)

	done := waitForStatus(t, s, task.ID, domain.TaskCompleted)
	assert.True(t, done.Result.Success)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
}

func TestService_Submit_MarksFailedOnError(t *testing.T) {
	pipeline := &fakePipeline{err: errors.New("boom")}
	s := NewService(pipeline, nil, 1, zerolog.Nop())

	task := s.Submit("600519", "simple", "", "test")
	done := waitForStatus(t, s, task.ID, domain.TaskFailed)
	assert.Equal(t, "boom", done.Err)
}

func TestService_Submit_MarksFailedOnUnsuccessfulResult(t *testing.T) {
	pipeline := &fakePipeline{result: &domain.AnalysisResult{Success: false, ErrorMessage: "no history"}}
	s := NewService(pipeline, nil, 1, zerolog.Nop())

	task := s.Submit("600519", "simple", "", "test")
	done := waitForStatus(t, s, task.ID, domain.TaskFailed)
	assert.Equal(t, "no history", done.Err)
}

func TestService_ListTasks_MostRecentFirst(t *testing.T) {
	pipeline := &fakePipeline{result: &domain.AnalysisResult{Success: true}}
	s := NewService(pipeline, nil, 1, zerolog.Nop())

	first := s.Submit("600519", "simple", "", "test")
	waitForStatus(t, s, first.ID, domain.TaskCompleted)
	second := s.Submit("000001", "simple", "", "test")
	waitForStatus(t, s, second.ID, domain.TaskCompleted)

	tasks := s.ListTasks(10)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)
}

func TestService_GetTaskStatus_UnknownID(t *testing.T) {
	s := NewService(&fakePipeline{result: &domain.AnalysisResult{Success: true}}, nil, 1, zerolog.Nop())
	_, ok := s.GetTaskStatus("does-not-exist")
	assert.False(t, ok)
}
