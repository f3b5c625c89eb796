// Package tasks runs background work in-process: a worker pool fed by a buffered
// channel for request-triggered jobs, and a cron scheduler for periodic ones.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voicevibe/backend/metrics"
)

// Task types dispatched by the API.
const (
	TypeSessionCompleted    = "session.completed"
	TypeRecordingTranscribe = "recording.transcribe"
	TypePasswordResetEmail  = "password_reset.email"
	TypeLeaderboardSync     = "leaderboard.sync"
)

const maxAttempts = 3

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

type Task struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// NewTask encodes payload as the task body.
func NewTask(taskType string, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}
	return Task{Type: taskType, Payload: data}, nil
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", t.Type, err)
	}
	return nil
}

// Handler processes one task. Returning an error schedules a retry.
type Handler func(ctx context.Context, task Task) error

type Queue struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	tasks   chan Task
	workers int
	backoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		handlers: make(map[string]Handler),
		tasks:    make(chan Task, size),
		workers:  workers,
		backoff:  time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *Queue) Register(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	slog.Info("Task queue started", "workers", q.workers, "capacity", cap(q.tasks))
}

// Enqueue hands the task to the pool without blocking.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.tasks <- task:
		metrics.RecordTask(task.Type, "enqueued")
		return nil
	default:
		metrics.RecordTask(task.Type, "dropped")
		slog.Warn("Task queue full", "type", task.Type)
		return ErrQueueFull
	}
}

// EnqueueType encodes payload and enqueues it, logging instead of failing the caller.
func (q *Queue) EnqueueType(ctx context.Context, taskType string, payload any) {
	task, err := NewTask(taskType, payload)
	if err == nil {
		err = q.Enqueue(ctx, task)
	}
	if err != nil {
		slog.Error("Failed to enqueue task", "type", taskType, "error", err)
	}
}

// Shutdown stops intake and waits for queued work to drain or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		slog.Info("Task queue stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(id, task)
	}
}

func (q *Queue) process(worker int, task Task) {
	q.mu.RLock()
	h, ok := q.handlers[task.Type]
	q.mu.RUnlock()
	if !ok {
		slog.Error("No handler for task", "type", task.Type)
		metrics.RecordTask(task.Type, "unhandled")
		return
	}

	for task.Attempts < maxAttempts {
		task.Attempts++
		err := q.run(h, task)
		if err == nil {
			metrics.RecordTask(task.Type, "succeeded")
			return
		}
		slog.Warn("Task attempt failed", "type", task.Type, "attempt", task.Attempts, "worker", worker, "error", err)
		if task.Attempts >= maxAttempts {
			break
		}
		metrics.RecordTask(task.Type, "retried")
		select {
		case <-time.After(time.Duration(task.Attempts) * q.backoff):
		case <-q.ctx.Done():
			metrics.RecordTask(task.Type, "failed")
			return
		}
	}
	slog.Error("Task failed", "type", task.Type, "attempts", task.Attempts)
	metrics.RecordTask(task.Type, "failed")
}

func (q *Queue) run(h Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(q.ctx, task)
}
