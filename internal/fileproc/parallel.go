// Package fileproc runs per-file work on a bounded worker pool.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// FileError is a failure tied to one input file.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// FileErrors accumulates failures from concurrent workers. A nil
// *FileErrors is empty.
type FileErrors struct {
	mu   sync.Mutex
	list []FileError
}

// Add records a failure. Safe for concurrent use.
func (e *FileErrors) Add(path string, err error) {
	e.mu.Lock()
	e.list = append(e.list, FileError{Path: path, Err: err})
	e.mu.Unlock()
}

// Len returns the number of failures.
func (e *FileErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

// Sorted returns a copy of the failures ordered by path.
func (e *FileErrors) Sorted() []FileError {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	out := make([]FileError, len(e.list))
	copy(out, e.list)
	e.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Join returns every failure as one error, or nil when there are none.
func (e *FileErrors) Join() error {
	sorted := e.Sorted()
	if len(sorted) == 0 {
		return nil
	}
	errs := make([]error, len(sorted))
	for i, fe := range sorted {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

func (e *FileErrors) Error() string {
	switch n := e.Len(); n {
	case 0:
		return "no errors"
	case 1:
		return e.Sorted()[0].Error()
	default:
		return fmt.Sprintf("%d files failed (first: %v)", n, e.Sorted()[0])
	}
}

const workersPerCPU = 2

// Workers returns n, or twice the CPU count when n is not positive.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * workersPerCPU
}

// ProgressFunc is called once per file, whether it succeeded or not.
type ProgressFunc func()

// Run calls fn for every file with at most Workers(workers) running at once.
// Results keep the order of files; failed files leave no result and are
// returned in the errors, which are nil when every file succeeded. A failing
// file never stops the others. Once ctx is done no new file starts and each
// file not yet started is recorded with the context error.
func Run[T any](ctx context.Context, files []string, workers int, fn func(path string) (T, error), onProgress ProgressFunc) ([]T, *FileErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		slots = make([]T, len(files))
		done  = make([]bool, len(files))
		errs  = &FileErrors{}
	)

	p := pool.New().WithMaxGoroutines(Workers(workers))
	for i, path := range files {
		p.Go(func() {
			if onProgress != nil {
				defer onProgress()
			}
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				return
			}
			result, err := fn(path)
			if err != nil {
				errs.Add(path, err)
				return
			}
			// each goroutine owns index i
			slots[i], done[i] = result, true
		})
	}
	p.Wait()

	results := make([]T, 0, len(files))
	for i := range slots {
		if done[i] {
			results = append(results, slots[i])
		}
	}
	if errs.Len() == 0 {
		return results, nil
	}
	return results, errs
}
