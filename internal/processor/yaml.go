package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/harrison/filescout/internal/visitor"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// YAMLCheck parses every document of a YAML file. A syntax error fails the file.
func YAMLCheck(_ context.Context, fs afero.Fs, path string, cs visitor.Charset, log *filteredlog.Log) (Record, error) {
	data, err := readDecoded(fs, path, cs, log)
	if err != nil {
		return Record{}, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	documents := 0
	for {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.LogException(err, "Invalid YAML in '%s' after %d document(s)", path, documents)
			return Record{}, fmt.Errorf("parse yaml: %w", err)
		}
		documents++
	}

	return Record{
		Path:      path,
		Kind:      "yaml",
		Bytes:     int64(len(data)),
		Documents: documents,
	}, nil
}
