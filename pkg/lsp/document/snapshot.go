// Package document tracks open .gsx documents as immutable, versioned
// snapshots together with the generated documents and mapping table the
// transpiler produced for each version.
package document

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// GeneratedDocument is a transpiled, single-language view of an authored
// document.
type GeneratedDocument struct {
	URI      string
	Language mapping.Language
	Version  int
	Text     string
}

// Snapshot is one version of an authored document. A Snapshot is never
// modified after it is stored; a new version replaces it.
type Snapshot struct {
	URI       string
	Version   int
	Text      string
	Table     *mapping.Table
	Generated map[mapping.Language]GeneratedDocument
}

// GeneratedFor returns the generated document for lang, if the transpiler
// produced one.
func (s *Snapshot) GeneratedFor(lang mapping.Language) (GeneratedDocument, bool) {
	g, ok := s.Generated[lang]
	return g, ok
}

// OffsetAt converts an authored position to a byte offset.
func (s *Snapshot) OffsetAt(pos protocol.Position) int {
	return protocol.PositionToOffset(s.Text, pos)
}

// PositionAt converts an authored byte offset to a position.
func (s *Snapshot) PositionAt(offset int) protocol.Position {
	return protocol.OffsetToPosition(s.Text, offset)
}

// URIToPath converts a file:// URI to a file path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if !strings.HasPrefix(uri, prefix) {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(uri, prefix)
	}
	return filepath.FromSlash(u.Path)
}

// PathToURI converts a file path to a file:// URI.
func PathToURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// GeneratedURI returns the URI of the generated document for lang next to
// the authored document: file:///a/counter.gsx -> file:///a/counter_gsx.go.
func GeneratedURI(authoredURI string, lang mapping.Language) string {
	dir, base := splitURI(authoredURI)
	return dir + mapping.GeneratedName(base, lang)
}

// IsGeneratedURI reports whether uri names a generated document.
func IsGeneratedURI(uri string) bool {
	for _, lang := range mapping.Languages {
		if strings.HasSuffix(uri, mapping.GeneratedSuffix(lang)) {
			return true
		}
	}
	return false
}

func splitURI(uri string) (dir, base string) {
	i := strings.LastIndex(uri, "/")
	if i < 0 {
		return "", uri
	}
	return uri[:i+1], uri[i+1:]
}
