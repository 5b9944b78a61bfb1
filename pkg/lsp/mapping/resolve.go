package mapping

import "github.com/grindlemire/gsxls/pkg/lsp/log"

// Projection is the result of resolving an authored offset.
type Projection struct {
	// Language owns the authored offset. LanguageHost when no entry covers it.
	Language Language
	// Offset is the corresponding offset in the generated document of
	// Language. For host positions it is the authored offset unchanged.
	Offset int
	// Resolved is false when the offset is host territory and the caller
	// did not accept host positions.
	Resolved bool
}

// Resolve finds the entry that owns an authored offset and projects the
// offset into that entry's generated document:
//
//	generated = entry.Generated.Start + (offset - entry.Authored.Start)
//
// Offsets covered by no entry resolve to LanguageHost, which counts as
// resolved only when acceptHost is set.
func Resolve(t *Table, offset int, acceptHost bool) Projection {
	e, ok := t.findAuthored(offset)
	if !ok {
		log.Mapping("Resolve: offset %d is host territory (acceptHost=%v)", offset, acceptHost)
		return Projection{
			Language: LanguageHost,
			Offset:   offset,
			Resolved: acceptHost,
		}
	}

	delta := offset - e.Authored.Start
	if delta > e.Generated.Length {
		delta = e.Generated.Length
	}
	p := Projection{
		Language: e.Language,
		Offset:   e.Generated.Start + delta,
		Resolved: true,
	}
	log.Mapping("Resolve: offset %d -> %s offset %d", offset, p.Language, p.Offset)
	return p
}
