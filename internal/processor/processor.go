// Package processor contains the built-in file transforms of filescout.
// Each transform turns one file into a Record; which one runs is selected by name.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/harrison/filescout/internal/visitor"
	"github.com/spf13/afero"
)

// Record is the result of processing one file. Only the fields of the
// processor that produced it are set.
type Record struct {
	Path      string    `json:"path" yaml:"path"`
	Kind      string    `json:"kind" yaml:"kind"`
	Bytes     int64     `json:"bytes" yaml:"bytes"`
	Lines     int       `json:"lines,omitempty" yaml:"lines,omitempty"`
	Headings  []Heading `json:"headings,omitempty" yaml:"headings,omitempty"`
	Documents int       `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// Heading is a Markdown heading.
type Heading struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Func processes one file, reading it through fs.
type Func func(ctx context.Context, fs afero.Fs, path string, cs visitor.Charset, log *filteredlog.Log) (Record, error)

var registry = map[string]Func{
	"lines":    LineCount,
	"markdown": MarkdownOutline,
	"yaml":     YAMLCheck,
}

// Lookup returns the processor registered under name as a transform that reads
// files through fs, the filesystem the files were found on.
func Lookup(name string, fs afero.Fs) (visitor.Transform[Record], error) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q, must be one of: %s", name, strings.Join(Names(), ", "))
	}
	return Bind(p, fs), nil
}

// Bind turns p into a transform reading through fs.
func Bind(p Func, fs afero.Fs) visitor.Transform[Record] {
	return func(ctx context.Context, path string, cs visitor.Charset, log *filteredlog.Log) (Record, error) {
		return p(ctx, fs, path, cs, log)
	}
}

// Names returns the registered processor names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readDecoded reads path from fs and decodes it from cs into UTF-8.
// A failure is logged with its cause before it is returned.
func readDecoded(fs afero.Fs, path string, cs visitor.Charset, log *filteredlog.Log) ([]byte, error) {
	data, err := readAll(fs, path, cs)
	if err != nil {
		log.LogException(err, "Cannot read '%s' as %s", path, cs)
		return nil, err
	}
	return data, nil
}

func readAll(fs afero.Fs, path string, cs visitor.Charset) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(cs.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read %s as %s: %w", path, cs, err)
	}
	return data, nil
}

// LineCount counts the lines of a text file.
func LineCount(_ context.Context, fs afero.Fs, path string, cs visitor.Charset, log *filteredlog.Log) (Record, error) {
	data, err := readDecoded(fs, path, cs, log)
	if err != nil {
		return Record{}, err
	}

	lines := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines++
	}

	return Record{
		Path:  path,
		Kind:  "lines",
		Bytes: int64(len(data)),
		Lines: lines,
	}, nil
}
