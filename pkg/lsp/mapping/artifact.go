package mapping

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Artifact is the on-disk mapping file the transpiler writes next to each
// generated document, e.g. counter_gsx.go.map for counter_gsx.go.
type Artifact struct {
	// SourceFile is the authored .gsx file path.
	SourceFile string `json:"sourceFile"`

	// Language owns every mapping in this artifact.
	Language Language `json:"language"`

	// Mappings pair authored spans with generated spans (byte offsets).
	Mappings []ArtifactMapping `json:"mappings"`
}

// ArtifactMapping is a single span pair in an Artifact.
type ArtifactMapping struct {
	AuthoredStart   int `json:"authoredStart"`
	AuthoredLength  int `json:"authoredLength"`
	GeneratedStart  int `json:"generatedStart"`
	GeneratedLength int `json:"generatedLength"`
}

// ParseArtifact parses a mapping artifact from JSON.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing mapping artifact: %w", err)
	}
	if a.Language == LanguageHost {
		return nil, fmt.Errorf("mapping artifact for %s: host language has no generated document", a.SourceFile)
	}
	return &a, nil
}

// Entries converts the artifact's mappings into table entries.
func (a *Artifact) Entries() []Entry {
	entries := make([]Entry, 0, len(a.Mappings))
	for _, m := range a.Mappings {
		entries = append(entries, Entry{
			Authored:  Span{Start: m.AuthoredStart, Length: m.AuthoredLength},
			Generated: Span{Start: m.GeneratedStart, Length: m.GeneratedLength},
			Language:  a.Language,
		})
	}
	return entries
}

// GeneratedSuffix returns the file suffix the transpiler uses for the
// generated document of lang.
func GeneratedSuffix(lang Language) string {
	switch lang {
	case LanguageGo:
		return "_gsx.go"
	case LanguageTailwind:
		return "_gsx.tw.html"
	}
	return ""
}

// GeneratedName returns the generated file name for an authored base name:
// counter.gsx -> counter_gsx.go.
func GeneratedName(authoredBase string, lang Language) string {
	name := strings.TrimSuffix(authoredBase, ".gsx")
	name = strings.ReplaceAll(name, "-", "_")
	return name + GeneratedSuffix(lang)
}

// ArtifactName returns the mapping artifact name for a generated file:
// counter_gsx.go -> counter_gsx.go.map.
func ArtifactName(generatedFile string) string {
	return generatedFile + ".map"
}
