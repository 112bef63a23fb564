package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/mattn/go-isatty"
)

const errorMarker = "[-ERROR-]"

// LogHandler copies the messages of a filteredlog.Log to a writer. Each call to
// Log only writes the messages added since the previous call.
// Format: "[<name>] [-ERROR-] <message>" for errors, "[<name>] <message>" for info.
type LogHandler struct {
	writer       io.Writer
	name         string
	infoLines    int
	errorLines   int
	skippedLines int
	colorMarker  bool
}

// NewLogHandler creates a handler that prefixes every line with name.
func NewLogHandler(writer io.Writer, name string) *LogHandler {
	return &LogHandler{
		writer:      writer,
		name:        name,
		colorMarker: isTTY(writer) && !color.NoColor,
	}
}

// NewLogHandlerFrom creates a handler that skips the messages already in baseline.
func NewLogHandlerFrom(writer io.Writer, name string, baseline *filteredlog.Log) *LogHandler {
	h := NewLogHandler(writer, name)
	if baseline != nil {
		h.infoLines = len(baseline.InfoMessages())
		h.errorLines = len(baseline.ErrorMessages())
		h.skippedLines = baseline.SkippedLines()
	}
	return h
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Log writes the error messages and then the info messages that were added to l
// since the last call. When errors beyond the line limit of l were counted since
// then, an updated skip summary follows the new error lines.
func (h *LogHandler) Log(l *filteredlog.Log) {
	if l == nil {
		return
	}

	errs := l.ErrorMessages()
	infos := l.InfoMessages()
	skipped := l.SkippedLines()

	if len(errs) < h.errorLines {
		h.skippedLines = 0
	}
	for _, msg := range newLines(errs, h.errorLines) {
		h.logError(msg)
	}
	if skipped > h.skippedLines {
		h.LogSkipped(skipped)
	}
	for _, msg := range newLines(infos, h.infoLines) {
		h.LogMessage(msg)
	}

	h.errorLines = len(errs)
	h.infoLines = len(infos)
	h.skippedLines = skipped
}

// LogSkipped writes the summary line for n errors that were not stored.
func (h *LogHandler) LogSkipped(n int) {
	h.logError(filteredlog.SkippedSummary(n))
}

// LogMessage writes a single info line.
func (h *LogHandler) LogMessage(message string) {
	h.printf("[%s] %s\n", h.name, message)
}

// LogMessagef writes a single formatted info line.
func (h *LogHandler) LogMessagef(format string, args ...any) {
	h.LogMessage(fmt.Sprintf(format, args...))
}

func (h *LogHandler) logError(message string) {
	marker := errorMarker
	if h.colorMarker {
		marker = color.New(color.FgRed).Sprint(errorMarker)
	}
	h.printf("[%s] %s %s\n", h.name, marker, message)
}

func (h *LogHandler) printf(format string, args ...any) {
	if h.writer == nil {
		return
	}
	fmt.Fprintf(h.writer, format, args...)
}

// newLines returns the messages after the first seen ones. A snapshot shorter
// than seen means the log was replaced, so everything is new again.
func newLines(messages []string, seen int) []string {
	if seen > len(messages) {
		return messages
	}
	return messages[seen:]
}
