package fileproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/panbanda/cpd/pkg/source"
)

// ErrTooLarge is recorded for files above the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// SourceOptions tunes MapSourceFiles.
type SourceOptions struct {
	MaxSize    int64 // bytes, 0 means unlimited
	Workers    int   // 0 means 2x NumCPU
	OnProgress ProgressFunc
}

// MapSourceFiles reads each file from src and processes its content in
// parallel. Read failures and files larger than opts.MaxSize are recorded in
// the returned errors and never reach fn.
func MapSourceFiles[T any](
	ctx context.Context,
	files []string,
	src source.ContentSource,
	opts SourceOptions,
	fn func(path string, content []byte) (T, error),
) ([]T, *FileErrors) {
	return Run(ctx, files, opts.Workers, func(path string) (T, error) {
		var zero T
		content, err := src.Read(path)
		if err != nil {
			return zero, err
		}
		if opts.MaxSize > 0 && int64(len(content)) > opts.MaxSize {
			return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(content), opts.MaxSize)
		}
		return fn(path, content)
	}, opts.OnProgress)
}
