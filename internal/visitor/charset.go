package visitor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInvalidEncoding is returned when an encoding name does not resolve to a charset.
var ErrInvalidEncoding = errors.New("invalid encoding")

// Charset is a resolved character encoding used to decode scanned files.
type Charset struct {
	Name     string
	Encoding encoding.Encoding
}

// UTF8 is used when no encoding is configured.
var UTF8 = Charset{Name: "UTF-8", Encoding: unicode.UTF8}

// LookupCharset resolves an IANA charset name (case-insensitive).
// An empty name selects UTF-8.
func LookupCharset(name string) (Charset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return Charset{}, fmt.Errorf("%w %q: %v", ErrInvalidEncoding, name, err)
	}
	if enc == nil {
		return Charset{}, fmt.Errorf("%w %q: charset is not supported", ErrInvalidEncoding, name)
	}

	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	return Charset{Name: canonical, Encoding: enc}, nil
}

// NewReader returns a reader that decodes r from the charset into UTF-8.
func (c Charset) NewReader(r io.Reader) io.Reader {
	if c.Encoding == nil {
		return r
	}
	return transform.NewReader(r, c.Encoding.NewDecoder())
}

// String returns the charset name.
func (c Charset) String() string {
	return c.Name
}
