// Package visitor finds files in a workspace, filters out the ones that cannot be
// processed and turns each remaining file into a typed result. Every step is
// recorded in a filteredlog.Log so the caller gets a deterministic audit trail
// alongside the results.
package visitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison/filescout/internal/filteredlog"
)

// LogTitle is the title of the log created for each invocation.
const LogTitle = "Errors during parsing"

// ErrInvalidPattern is returned when the file pattern cannot be parsed.
var ErrInvalidPattern = errors.New("invalid file pattern")

// Transform turns a single readable, non-empty file into a result.
// It may log additional messages. A returned error skips the file; the
// remaining files are still processed.
type Transform[T any] func(ctx context.Context, path string, cs Charset, log *filteredlog.Log) (T, error)

// Options configures a Visitor. They are fixed for the lifetime of the Visitor.
type Options struct {
	// FilePattern is a glob or a comma-separated list of globs, e.g. "**/*.txt".
	FilePattern string
	// Encoding is the IANA name of the charset used to read the files.
	Encoding string
	// FollowSymlinks enables traversal of symbolic links.
	FollowSymlinks bool
	// MaxErrorLines limits the error lines kept in the log. Zero uses the
	// default limit, a negative value disables it.
	MaxErrorLines int
}

// Visitor scans a workspace with a fixed configuration. A Visitor may be invoked
// several times; each invocation gets its own log and result slice.
type Visitor[T any] struct {
	opts      Options
	fs        FileSystem
	transform Transform[T]
}

// New creates a Visitor that discovers files through fs and processes them with transform.
func New[T any](opts Options, fs FileSystem, transform Transform[T]) *Visitor[T] {
	return &Visitor[T]{
		opts:      opts,
		fs:        fs,
		transform: transform,
	}
}

// Options returns the configuration of the visitor.
func (v *Visitor[T]) Options() Options {
	return v.opts
}

// Invoke scans workspace and processes every matching file in discovery order.
//
// Expected problems (no matching files, unreadable or empty files, failing
// transforms) are recorded in the result's log and never returned as errors.
// An error is only returned for an invalid pattern or encoding; the partial
// result is returned with it.
func (v *Visitor[T]) Invoke(ctx context.Context, workspace string) (*Result[T], error) {
	log := v.newLog()
	result := &Result[T]{
		Results: make([]T, 0),
		Log:     log,
	}

	log.LogInfof("Searching for all files in '%s' that match the pattern '%s'",
		v.fs.AbsolutePath(workspace), v.opts.FilePattern)
	if v.opts.FollowSymlinks {
		log.LogInfo("Traversing of symbolic links: enabled")
	} else {
		log.LogInfo("Traversing of symbolic links: disabled")
	}

	files, err := v.fs.Find(v.opts.FilePattern, v.opts.FollowSymlinks, workspace)
	if err != nil {
		log.LogErrorf("Invalid file pattern '%s'. Configuration error?", v.opts.FilePattern)
		return result, fmt.Errorf("%w %q: %v", ErrInvalidPattern, v.opts.FilePattern, err)
	}
	if len(files) == 0 {
		log.LogErrorf("No files found for pattern '%s'. Configuration error?", v.opts.FilePattern)
		return result, nil
	}

	result.Found = len(files)
	log.LogInfof("-> found %s", plural(len(files), "file"))

	var (
		charset  Charset
		resolved bool
	)
	for _, relativePath := range files {
		path := v.fs.Resolve(workspace, relativePath)

		if v.fs.IsNotReadable(path) {
			log.LogErrorf("Skipping file '%s' because Jenkins has no permission to read the file", relativePath)
			continue
		}
		if v.fs.IsEmpty(path) {
			log.LogErrorf("Skipping file '%s' because it's empty", relativePath)
			continue
		}

		if !resolved {
			charset, err = LookupCharset(v.opts.Encoding)
			if err != nil {
				log.LogErrorf("Invalid encoding '%s'. Configuration error?", v.opts.Encoding)
				return result, err
			}
			resolved = true
		}

		value, err := v.transform(ctx, path, charset, log)
		if err != nil {
			log.LogErrorf("Skipping file '%s' because processing failed: %v", relativePath, err)
			continue
		}
		result.Results = append(result.Results, value)
		log.LogInfof("Successfully processed file '%s'", relativePath)
	}

	return result, nil
}

func (v *Visitor[T]) newLog() *filteredlog.Log {
	if v.opts.MaxErrorLines != 0 {
		return filteredlog.NewWithLimit(LogTitle, v.opts.MaxErrorLines)
	}
	return filteredlog.New(LogTitle)
}

// plural renders "1 file" or "<n> files".
func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
