// Package filteredlog provides an ordered, append-only log with separate info and
// error channels. A log is created once per scan and handed to the caller afterwards.
package filteredlog

import (
	"fmt"
	"sync"
)

// DefaultMaxLines is the number of error lines stored before further errors are only counted.
const DefaultMaxLines = 20

// Log records info and error messages in insertion order.
// The title is written as the first error line when the first error is logged,
// so a log without errors has an empty error channel.
type Log struct {
	title    string
	maxLines int

	mu           sync.Mutex
	infoLines    []string
	errorLines   []string
	errorCount   int
	skippedLines int
}

// New creates a Log with the given title and the default error line limit.
func New(title string) *Log {
	return NewWithLimit(title, DefaultMaxLines)
}

// NewWithLimit creates a Log that stores at most maxLines error messages.
// A non-positive maxLines disables the limit.
func NewWithLimit(title string, maxLines int) *Log {
	return &Log{
		title:      title,
		maxLines:   maxLines,
		infoLines:  make([]string, 0),
		errorLines: make([]string, 0),
	}
}

// Title returns the title that prefixes the error channel.
func (l *Log) Title() string {
	return l.title
}

// LogInfo appends message to the info channel.
func (l *Log) LogInfo(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.infoLines = append(l.infoLines, message)
}

// LogInfof appends a formatted message to the info channel.
func (l *Log) LogInfof(format string, args ...any) {
	l.LogInfo(fmt.Sprintf(format, args...))
}

// LogError appends message to the error channel.
func (l *Log) LogError(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appendError(message)
}

// LogErrorf appends a formatted message to the error channel.
func (l *Log) LogErrorf(format string, args ...any) {
	l.LogError(fmt.Sprintf(format, args...))
}

// LogException logs the formatted message followed by the text of err as one
// error. Both lines are stored together or, beyond the line limit, not at all.
func (l *Log) LogException(err error, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.appendError(fmt.Sprintf(format, args...)) || err == nil {
		return
	}
	l.errorLines = append(l.errorLines, err.Error())
}

// appendError must be called with mu held. It reports whether message was stored.
func (l *Log) appendError(message string) bool {
	if l.errorCount == 0 && l.title != "" {
		l.errorLines = append(l.errorLines, l.title)
	}
	l.errorCount++

	if l.maxLines > 0 && l.errorCount > l.maxLines {
		l.skippedLines++
		return false
	}
	l.errorLines = append(l.errorLines, message)
	return true
}

// InfoMessages returns a snapshot of the info channel.
func (l *Log) InfoMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.infoLines))
	copy(out, l.infoLines)
	return out
}

// ErrorMessages returns a snapshot of the error channel. Errors beyond the line
// limit are not part of it, see SkippedLines.
func (l *Log) ErrorMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.errorLines))
	copy(out, l.errorLines)
	return out
}

// SkippedLines returns the number of errors that were counted but not stored
// because of the line limit.
func (l *Log) SkippedLines() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.skippedLines
}

// HasErrors reports whether any error has been logged.
func (l *Log) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.errorCount > 0
}

// Size returns the number of logged errors, including the ones beyond the line limit.
func (l *Log) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.errorCount
}

// SkippedSummary renders the line that reports n errors beyond the line limit.
func SkippedSummary(n int) string {
	return fmt.Sprintf("  ... skipped logging of %d additional errors ...", n)
}
