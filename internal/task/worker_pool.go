package task

import (
	"context"
	"log/slog"
	"sync"
)

// ProcessFunc handles one task taken from the queue. The worker pool passes
// a context that is not cancelled by Stop: work already dispatched to a paid
// provider runs to completion.
type ProcessFunc func(ctx context.Context, task Task, workerID int) error

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	taskQueue    TaskQueueReader
	workerCount  int
	process      ProcessFunc
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *slog.Logger
	errorHandler func(task Task, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool. A nil process runs Task.Execute.
func NewWorkerPool(
	taskQueue TaskQueueReader,
	config WorkerPoolConfig,
	process ProcessFunc,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	if process == nil {
		process = func(ctx context.Context, task Task, _ int) error {
			return task.Execute(ctx)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		process:     process,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for task execution failures
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals the workers to exit and waits for the tasks they are running.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-p.taskQueue.GetChannel():
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.run(task, id)
		}
	}
}

func (p *WorkerPool) run(task Task, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"worker_id", workerID,
				"panic", r)
		}
	}()

	if err := p.process(context.Background(), task, workerID); err != nil {
		if p.errorHandler != nil {
			p.errorHandler(task, err)
			return
		}
		p.logger.Error("task execution failed",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"worker_id", workerID,
			"error", err)
	}
}
