package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of a single task.
type Result struct {
	Name string
	Err  error
}

// Run executes tasks with at most limit running concurrently and waits for
// all of them. A limit below one is treated as one (sequential execution).
//
// Every task gets exactly one Result at its own index. Tasks that were not
// started because ctx was cancelled report ctx.Err(). A panic inside a task is
// recovered and reported as that task's error.
//
// Example:
//
//	results := Run(ctx, tasks, 4)
//	for _, r := range results {
//	    if r.Err != nil {
//	        log.Printf("%s: %v", r.Name, r.Err)
//	    }
//	}
func Run(ctx context.Context, tasks []Task, limit int) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(tasks) {
		limit = len(tasks)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for range limit {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Name: tasks[i].Name, Err: err}
					continue
				}
				results[i] = runTask(ctx, tasks[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(tasks); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case indexes <- next:
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(tasks); i++ {
		results[i] = Result{Name: tasks[i].Name, Err: ctx.Err()}
	}

	return results
}

// runTask runs a single task and converts a panic into an error.
func runTask(ctx context.Context, task Task) (res Result) {
	res.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if task.Func == nil {
		res.Err = fmt.Errorf("task %s has no function", task.Name)
		return res
	}
	res.Err = task.Func(ctx)
	return res
}

// Errors joins every task error, each prefixed with its task name.
// It returns nil when all tasks succeeded.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}
