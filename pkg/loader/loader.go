// Package loader lists and reads the raw documents an indexing run
// registers.
package loader

import (
	"context"
	"errors"
	"strings"
)

// ErrSourceMissing is returned when the configured input location does not
// exist. It is fatal at startup.
var ErrSourceMissing = errors.New("document source missing")

// Source enumerates documents and reads their content. Paths returned by
// List are stable identifiers and are passed back to Read unchanged.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// DefaultSuffix selects plain text documents.
const DefaultSuffix = ".txt"

// MatchesSuffix reports whether name ends in suffix, ignoring case.
func MatchesSuffix(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}
