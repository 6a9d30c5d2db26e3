// Package task implements the async TaskService: it accepts submissions
// from bot/API callers, assigns task IDs, runs them on a bounded worker
// pool, and records ledger entries the caller can poll for status.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/gcaaa31928/daily-stock-analysis/internal/symbol"
)

// queueSize bounds how many submissions may be pending before Submit
// blocks; fire-and-forget in practice since maxWorkers drains it quickly.
const queueSize = 256

// Pipeline is the narrow slice of analysis.Pipeline the worker pool
// drives; kept as an interface here so this package never imports the
// analysis package directly (avoids an import cycle with the history
// store glue in cmd/analyzer).
type Pipeline interface {
	ProcessSingleStock(ctx context.Context, code, queryID, reportType string, singleStockNotify bool) (*domain.AnalysisResult, error)
}

// HistoryStore is the read-only query boundary into the persistent
// analysis history; DB itself (internal/storage) is out of scope here.
type HistoryStore interface {
	GetHistory(ctx context.Context, code string, decision string, limit int) ([]domain.AnalysisResult, error)
}

// LedgerStore mirrors ledger entries into durable storage so a restart
// can still account for past submissions. Optional; the in-memory ledger
// stays authoritative for status queries.
type LedgerStore interface {
	UpsertTaskRecord(ctx context.Context, t *domain.Task) error
}

// job is one unit of work queued for a worker goroutine.
type job struct {
	task    *domain.Task
	traceID string
}

// Service is the process-local task ledger plus worker pool. Durable
// history lives in HistoryStore; the ledger itself does not survive a
// restart.
type Service struct {
	pipeline Pipeline
	history  HistoryStore
	mirror   LedgerStore

	jobs chan job

	mu     sync.RWMutex
	ledger map[string]*domain.Task
	order  []string // insertion order, for ListTasks' most-recent-first view

	log zerolog.Logger
}

// NewService constructs a Service and starts maxWorkers worker goroutines.
// Callers should treat the returned Service as a singleton, one per
// process.
func NewService(pipeline Pipeline, history HistoryStore, maxWorkers int, log zerolog.Logger) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	s := &Service{
		pipeline: pipeline,
		history:  history,
		jobs:     make(chan job, queueSize),
		ledger:   make(map[string]*domain.Task),
		log:      log.With().Str("component", "task-service").Logger(),
	}
	for i := 0; i < maxWorkers; i++ {
		go s.worker(i)
	}
	return s
}

// SetLedgerMirror wires a durable mirror for ledger entries. Must be
// called before the first Submit; entries written while unset are only
// held in memory.
func (s *Service) SetLedgerMirror(m LedgerStore) {
	s.mirror = m
}

// Submit assigns a task ID, records a running ledger entry, and pushes
// the work onto the pool. It returns immediately; the caller polls
// GetTaskStatus for completion.
func (s *Service) Submit(code, reportType, sourceMessage, source string) *domain.Task {
	sym := symbol.Classify(code)
	id := fmt.Sprintf("%s_%d", sym.Code, time.Now().UnixMicro())

	t := &domain.Task{
		ID:          id,
		Symbol:      sym,
		ReportType:  reportType,
		Status:      domain.TaskRunning,
		SubmittedAt: time.Now(),
	}

	s.mu.Lock()
	s.ledger[id] = t
	s.order = append(s.order, id)
	s.mu.Unlock()

	trace := uuid.NewString()
	s.log.Info().Str("task_id", id).Str("trace_id", trace).Str("code", code).Str("source", source).Msg("task submitted")
	s.mirrorTask(t)
	s.jobs <- job{task: t, traceID: trace}

	return t
}

func (s *Service) mirrorTask(t *domain.Task) {
	if s.mirror == nil {
		return
	}
	s.mu.RLock()
	snapshot := *t
	s.mu.RUnlock()
	if err := s.mirror.UpsertTaskRecord(context.Background(), &snapshot); err != nil {
		s.log.Warn().Err(err).Str("task_id", snapshot.ID).Msg("failed to mirror task record")
	}
}

// worker drains the job queue, running each task's pipeline call with
// per-stock notification enabled.
func (s *Service) worker(id int) {
	log := s.log.With().Int("worker", id).Logger()
	for j := range s.jobs {
		s.runAndMirror(log, j)
	}
}

func (s *Service) run(log zerolog.Logger, j job) {
	ctx := context.Background()
	now := time.Now()

	s.mu.Lock()
	j.task.StartedAt = &now
	s.mu.Unlock()

	result, err := s.pipeline.ProcessSingleStock(ctx, j.task.Symbol.Code, j.task.ID, j.task.ReportType, true)
	finished := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	j.task.FinishedAt = &finished
	j.task.Result = result

	switch {
	case err != nil:
		j.task.Status = domain.TaskFailed
		j.task.Err = err.Error()
		log.Error().Err(err).Str("task_id", j.task.ID).Str("trace_id", j.traceID).Msg("task failed")
	case result != nil && !result.Success:
		j.task.Status = domain.TaskFailed
		j.task.Err = result.ErrorMessage
		log.Warn().Str("task_id", j.task.ID).Str("trace_id", j.traceID).Str("reason", result.ErrorMessage).Msg("task completed with failure")
	default:
		j.task.Status = domain.TaskCompleted
		log.Info().Str("task_id", j.task.ID).Str("trace_id", j.traceID).Msg("task completed")
	}
}

// runAndMirror wraps run so the terminal state also reaches the durable
// mirror after the ledger update commits.
func (s *Service) runAndMirror(log zerolog.Logger, j job) {
	s.run(log, j)
	s.mirrorTask(j.task)
}

// GetTaskStatus returns the ledger entry for id, if any.
func (s *Service) GetTaskStatus(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.ledger[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// ListTasks returns up to limit ledger entries, most recently submitted
// first. limit <= 0 means "all".
func (s *Service) ListTasks(limit int) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Task, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *s.ledger[s.order[i]])
	}
	return out
}

// GetAnalysisHistory proxies to the durable HistoryStore; it is a
// read-only query and does not touch the in-memory ledger.
func (s *Service) GetAnalysisHistory(ctx context.Context, code, decision string, limit int) ([]domain.AnalysisResult, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.GetHistory(ctx, code, decision, limit)
}
