package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// Transpiler produces the snapshot of an authored document version: the
// generated documents and the mapping table between them.
type Transpiler interface {
	Transpile(ctx context.Context, uri, text string, version int) (*Snapshot, error)
}

// ArtifactTranspiler reads the artifacts `tui generate` writes next to each
// .gsx file: counter_gsx.go plus counter_gsx.go.map, and the same pair for
// every other embedded language. Languages without artifacts are skipped.
type ArtifactTranspiler struct {
	group singleflight.Group
}

// NewArtifactTranspiler creates a transpiler backed by on-disk artifacts.
func NewArtifactTranspiler() *ArtifactTranspiler {
	return &ArtifactTranspiler{}
}

// Transpile loads the artifacts for uri. Concurrent calls for the same
// document version share one load.
func (t *ArtifactTranspiler) Transpile(ctx context.Context, uri, text string, version int) (*Snapshot, error) {
	key := uri + "@" + strconv.Itoa(version)
	ch := t.group.DoChan(key, func() (any, error) {
		return t.load(uri, text, version)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (t *ArtifactTranspiler) load(uri, text string, version int) (*Snapshot, error) {
	path := URIToPath(uri)
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	snap := &Snapshot{
		URI:       uri,
		Version:   version,
		Text:      text,
		Generated: make(map[mapping.Language]GeneratedDocument),
	}

	var entries []mapping.Entry
	for _, lang := range mapping.Languages {
		genName := mapping.GeneratedName(base, lang)
		genPath := filepath.Join(dir, genName)

		genText, err := os.ReadFile(genPath)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading generated %s document: %w", lang, err)
		}

		mapPath := filepath.Join(dir, mapping.ArtifactName(genName))
		data, err := os.ReadFile(mapPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s mapping artifact: %w", lang, err)
		}
		artifact, err := mapping.ParseArtifact(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", mapPath, err)
		}
		if artifact.Language != lang {
			return nil, fmt.Errorf("%s: artifact language %s, want %s", mapPath, artifact.Language, lang)
		}

		entries = append(entries, artifact.Entries()...)
		snap.Generated[lang] = GeneratedDocument{
			URI:      GeneratedURI(uri, lang),
			Language: lang,
			Version:  version,
			Text:     string(genText),
		}
		log.Mapping("Loaded %d %s mappings from %s", len(artifact.Mappings), lang, mapPath)
	}

	table, err := mapping.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("mapping table for %s: %w", uri, err)
	}
	snap.Table = table
	return snap, nil
}

// StaticTranspiler returns a fixed snapshot shape for every version. It is
// used when the transpiler output is already in memory.
type StaticTranspiler struct {
	Table     *mapping.Table
	Generated map[mapping.Language]GeneratedDocument
}

// Transpile implements Transpiler.
func (t *StaticTranspiler) Transpile(_ context.Context, uri, text string, version int) (*Snapshot, error) {
	generated := make(map[mapping.Language]GeneratedDocument, len(t.Generated))
	for lang, g := range t.Generated {
		g.Version = version
		generated[lang] = g
	}
	return &Snapshot{
		URI:       uri,
		Version:   version,
		Text:      text,
		Table:     t.Table,
		Generated: generated,
	}, nil
}
