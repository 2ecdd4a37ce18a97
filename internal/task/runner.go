package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownTaskType is returned when no factory is registered for a stored task.
	ErrUnknownTaskType = errors.New("no factory registered for task type")

	// ErrDeferred is returned by Execute when the task has unsettled work and
	// must run again later. The stored task stays processing until the stuck
	// task monitor picks it up.
	ErrDeferred = errors.New("task deferred for a later run")
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset. Pending tasks older than this
	// that are not queued in this process are queued again.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. Every submitted task is
// saved before it is queued, so Recover can rebuild unfinished work after a
// restart through the factories registered per task type.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	config     TaskRunnerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once

	mu        sync.Mutex
	factories map[string]Factory
	queued    map[uuid.UUID]struct{}
	running   map[uuid.UUID]struct{}
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	logger = logger.With("component", "task_runner")
	ctx, cancel := context.WithCancel(context.Background())

	r := &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
		factories:  make(map[string]Factory),
		queued:     make(map[uuid.UUID]struct{}),
		running:    make(map[uuid.UUID]struct{}),
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.processTask, logger)
	r.pool.SetErrorHandler(func(task Task, err error) {
		logger.Error("task execution failed",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
	})
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// RegisterFactory sets the factory used to rebuild stored tasks of taskType.
func (r *TaskRunner) RegisterFactory(taskType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = factory
}

// Submit saves the task and adds it to the queue. When the queue cannot take
// it the stored task is marked failed so recovery does not revive it.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.enqueue(task); err != nil {
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"task_id", task.ID(),
				"error", updateErr)
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start recovers unfinished tasks, then starts the workers and the stuck task monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner, waiting for running tasks.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.wg.Wait()
		r.pool.Stop()
		r.queue.Close()
	})
}

// Recover requeues pending tasks and resets processing tasks left behind
// by a previous process.
func (r *TaskRunner) Recover(ctx context.Context) error {
	pending, err := r.store.GetPendingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec)
	}

	for _, rec := range processing {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	return nil
}

// requeue rebuilds a stored task and queues it. Records that cannot be
// rebuilt are marked failed.
func (r *TaskRunner) requeue(ctx context.Context, rec Record) {
	task, err := r.rebuild(rec)
	if err != nil {
		r.logger.Error("failed to rebuild stored task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark unrecoverable task as failed",
				"task_id", rec.ID,
				"error", updateErr)
		}
		return
	}

	if err := r.enqueue(task); err != nil {
		// Left pending in the store; the stuck task monitor picks it up.
		r.logger.Error("failed to requeue task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
		return
	}
	r.logger.Info("requeued task", "task_id", rec.ID, "task_type", rec.Type)
}

// enqueue records the task as queued before handing it to the queue, so a
// worker that picks it up immediately always finds the mark to clear.
func (r *TaskRunner) enqueue(task Task) error {
	r.mu.Lock()
	r.queued[task.ID()] = struct{}{}
	r.mu.Unlock()

	if err := r.queue.Enqueue(task); err != nil {
		r.mu.Lock()
		delete(r.queued, task.ID())
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *TaskRunner) rebuild(rec Record) (Task, error) {
	r.mu.Lock()
	factory, ok := r.factories[rec.Type]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, rec.Type)
	}
	return factory(rec)
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) error {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if !r.markRunning(task.ID()) {
		log.Warn("task already running in this process, skipping duplicate")
		return nil
	}
	defer r.markDone(task.ID())

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to update task status to processing: %w", err)
	}

	log.Info("processing task")
	start := time.Now()

	if err := task.Execute(ctx); err != nil {
		if errors.Is(err, ErrDeferred) {
			log.Warn("task deferred, leaving it processing for a later run", "error", err)
			return nil
		}
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		return err
	}

	log.Info("task completed successfully", "duration_ms", time.Since(start).Milliseconds())
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); err != nil {
		log.Error("failed to update task status to completed", "error", err)
	}
	return nil
}

func (r *TaskRunner) markRunning(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queued, id)
	if _, busy := r.running[id]; busy {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

func (r *TaskRunner) markDone(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
}

func (r *TaskRunner) isRunning(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.running[id]
	return busy
}

func (r *TaskRunner) isQueuedOrRunning(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, queued := r.queued[id]
	_, busy := r.running[id]
	return queued || busy
}

// stuckTaskMonitor periodically resets tasks that have been in "processing"
// state for too long and are not running in this process, and queues old
// pending tasks that never made it into the queue.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.resetStuckTasks(r.ctx)
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	stuck, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}

	for _, rec := range stuck {
		if r.isRunning(rec.ID) {
			continue
		}
		r.logger.Info("found stuck task", "task_id", rec.ID, "task_type", rec.Type)
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	r.requeueStalePending(ctx)
}

// requeueStalePending queues pending tasks that were left out of the queue,
// for example because it was full during recovery.
func (r *TaskRunner) requeueStalePending(ctx context.Context) {
	pending, err := r.store.GetPendingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stale pending tasks", "error", err)
		return
	}

	for _, rec := range pending {
		if r.isQueuedOrRunning(rec.ID) {
			continue
		}
		r.logger.Info("found stale pending task", "task_id", rec.ID, "task_type", rec.Type)
		r.requeue(ctx, rec)
	}
}
