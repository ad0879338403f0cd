package models

import (
	"context"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/cloudsend/types"
)

// RunTTL is how long a finished run and its report stay queryable.
var RunTTL = 60 * time.Minute

// runStore keeps running runs until they finish, however long that takes,
// and finished runs for ttl.
type runStore struct {
	mu       sync.RWMutex
	running  map[string]*types.UploadRun
	contexts map[string]*types.UploadRunContext
	finished *ttlworker.Cache[string, *types.UploadRun]
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{
		running:  make(map[string]*types.UploadRun),
		contexts: make(map[string]*types.UploadRunContext),
		finished: ttlworker.NewCache[string, *types.UploadRun](ttl),
	}
}

var runs = newRunStore(RunTTL)

func (s *runStore) create(run *types.UploadRun) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	run.State = types.RunRunning
	s.running[run.ID] = run
	s.contexts[run.ID] = &types.UploadRunContext{Ctx: ctx, Cancel: cancel}
	return ctx
}

func (s *runStore) get(runID string) (types.UploadRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.running[runID]; ok {
		return *run, true
	}
	run := s.finished.Get(runID)
	if run == nil {
		return types.UploadRun{}, false
	}
	return *run, true
}

func (s *runStore) finish(runID string, report types.AggregateReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.running[runID]
	if !ok {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	run.Report = &report
	if report.Cancelled {
		run.State = types.RunCancelled
	} else {
		run.State = types.RunFinished
	}
	delete(s.running, runID)
	s.finished.Set(runID, run)
	if runCtx, ok := s.contexts[runID]; ok {
		runCtx.Cancel()
		delete(s.contexts, runID)
	}
}

func (s *runStore) cancel(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	runCtx, ok := s.contexts[runID]
	if !ok {
		return false
	}
	runCtx.Cancel()
	return true
}

func (s *runStore) cancelled(runID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runCtx, ok := s.contexts[runID]
	if !ok {
		return true
	}
	return runCtx.Ctx.Err() != nil
}

// CreateRun registers a running upload and returns the context it must run under.
func CreateRun(run *types.UploadRun) context.Context {
	return runs.create(run)
}

// GetRun returns a copy of the run.
func GetRun(runID string) (types.UploadRun, bool) {
	return runs.get(runID)
}

// FinishRun stores the report of a run and releases its context.
func FinishRun(runID string, report types.AggregateReport) {
	runs.finish(runID, report)
}

// CancelRun cancels a running upload. It reports false when the run is
// unknown or already finished.
func CancelRun(runID string) bool {
	return runs.cancel(runID)
}

// IsRunCancelled checks whether the run's context is done.
func IsRunCancelled(runID string) bool {
	return runs.cancelled(runID)
}
