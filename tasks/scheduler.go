package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/voicevibe/backend/metrics"
)

// Standard job schedules (minute hour dom month dow).
const (
	SpecStaleSessions = "*/5 * * * *"
	SpecLeaderboard   = "0 * * * *"
	SpecQuestRotation = "5 0 * * *"
	SpecTokenCleanup  = "0 3 * * *"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

func NewScheduler() *Scheduler {
	l := slogAdapter{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		ctx:  ctx,
		stop: cancel,
	}
}

// Add registers a named job. The job's context is cancelled when the scheduler stops.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		err := job(s.ctx)
		metrics.RecordCronRun(name, time.Since(start), err == nil)
		if err != nil {
			slog.Error("Scheduled job failed", "job", name, "error", err)
			return
		}
		slog.Debug("Scheduled job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return err
	}
	slog.Info("Scheduled job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
