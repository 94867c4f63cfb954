package binder

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs periodic widget refreshes. Each key owns at most one cron
// entry; registering a key again replaces its previous entry.
type Scheduler struct {
	scheduler  *cron.Cron
	jobEntries map[string]cron.EntryID
	mu         sync.Mutex
	logger     *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		scheduler: cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobEntries: make(map[string]cron.EntryID),
		logger:     logger,
	}
}

// ScheduleInterval clamps d to floor and rounds it up to whole seconds,
// the granularity cron.Every runs at. Zero stays zero.
func ScheduleInterval(d, floor time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d < floor {
		d = floor
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}

// Every runs fn every interval until Cancel(key). The interval is rounded
// up to whole seconds.
func (s *Scheduler) Every(key string, interval time.Duration, fn func()) {
	interval = ScheduleInterval(interval, time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobEntries[key]; exists {
		s.scheduler.Remove(entryID)
	}
	s.jobEntries[key] = s.scheduler.Schedule(cron.Every(interval), cron.FuncJob(fn))
	s.logger.Debug("Scheduled widget refresh", zap.String("key", key), zap.Duration("interval", interval))
}

// Cancel removes the entry registered under key and reports whether one
// existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobEntries[key]
	if !exists {
		return false
	}
	s.scheduler.Remove(entryID)
	delete(s.jobEntries, key)
	return true
}

func (s *Scheduler) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobEntries[key]
	return exists
}

// Len returns the number of registered entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobEntries)
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting refresh scheduler")
	s.scheduler.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	s.logger.Info("Refresh scheduler stopped")
}
