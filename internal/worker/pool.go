package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicResult is produced when a job panics instead of returning
type PanicResult struct {
	Value interface{}
}

// GetError reports the recovered panic as an error
func (r *PanicResult) GetError() error {
	return fmt.Errorf("job panicked: %v", r.Value)
}

// Pool manages a pool of workers that execute jobs concurrently.
// Results are collected while jobs run, so any number of jobs may be submitted before Wait.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collected  []Result
	collectWg  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPoolContext creates a worker pool whose jobs observe ctx
func NewPoolContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	p.collectWg.Add(1)
	go func() {
		defer p.collectWg.Done()
		for result := range p.results {
			p.collected = append(p.collected, result)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := p.execute(job)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// execute runs one job, converting a panic into a PanicResult
func (p *Pool) execute(job Job) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = &PanicResult{Value: rec}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit submits a job to the pool for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all jobs to complete and returns the results
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWg.Wait()
	p.cancelFunc()

	return p.collected
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Task is a named function run on the pool
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskResult is the outcome of one Task
type TaskResult struct {
	Name  string
	Error error
}

// GetError returns the task error
func (r *TaskResult) GetError() error {
	return r.Error
}

type taskJob struct {
	task Task
}

func (j *taskJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &TaskResult{Name: j.task.Name, Error: err}
	}
	return &TaskResult{Name: j.task.Name, Error: j.task.Run(ctx)}
}

// RunTasks executes every task on a pool of workers and waits for all of them.
// It returns the first failure, naming the task; a panicking task counts as a failure.
func RunTasks(ctx context.Context, workers int, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	pool := NewPoolContext(ctx, workers)
	pool.Start()
	for _, task := range tasks {
		pool.Submit(&taskJob{task: task})
	}
	results := pool.Wait()

	if len(results) != len(tasks) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%d of %d tasks did not complete", len(tasks)-len(results), len(tasks))
	}

	for _, result := range results {
		err := result.GetError()
		if err == nil {
			continue
		}
		if tr, ok := result.(*TaskResult); ok {
			return fmt.Errorf("%s: %w", tr.Name, err)
		}
		return err
	}
	return nil
}
