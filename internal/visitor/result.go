package visitor

import "github.com/harrison/filescout/internal/filteredlog"

// Result holds the values produced for each processed file, in discovery order,
// together with the log of the invocation.
type Result[T any] struct {
	Results []T
	Log     *filteredlog.Log
	// Found is the number of files that matched the pattern, before filtering.
	Found int
}

// HasErrors reports whether the invocation logged any error.
func (r *Result[T]) HasErrors() bool {
	return r.Log != nil && r.Log.HasErrors()
}
