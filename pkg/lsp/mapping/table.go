// Package mapping holds the authored↔generated position mappings produced by
// the .gsx transpiler and resolves authored offsets into generated ones.
//
// A Table is an immutable snapshot for one document version. All lookups are
// pure functions of the table and the offset, so a Table may be shared by any
// number of concurrent requests.
package mapping

import (
	"fmt"
	"sort"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

// Span is a closed-open byte interval [Start, Start+Length).
type Span struct {
	Start  int
	Length int
}

// End returns the exclusive end of the span.
func (s Span) End() int {
	return s.Start + s.Length
}

// Contains reports whether offset lies in [Start, End).
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End()
}

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End() && o.Start < s.End()
}

// Entry pairs an authored span with the generated span it was transpiled to.
type Entry struct {
	Authored  Span
	Generated Span
	Language  Language
}

// Table is an ordered, immutable set of entries for one document version.
// The zero value and a nil *Table are both valid empty tables.
type Table struct {
	entries []Entry
}

// NewTable copies, sorts and validates entries. Authored spans may not
// overlap each other, and generated spans may not overlap within a language,
// so every authored offset has exactly one owner and the mapping is
// invertible.
func NewTable(entries []Entry) (*Table, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Authored.Start != sorted[j].Authored.Start {
			return sorted[i].Authored.Start < sorted[j].Authored.Start
		}
		return sorted[i].Authored.Length > sorted[j].Authored.Length
	})

	for i, e := range sorted {
		if e.Language == LanguageHost {
			return nil, fmt.Errorf("entry %d: host language cannot own a generated span", i)
		}
		if e.Authored.Start < 0 || e.Authored.Length < 0 || e.Generated.Start < 0 || e.Generated.Length < 0 {
			return nil, fmt.Errorf("entry %d: negative span", i)
		}
		if i > 0 && sorted[i-1].Authored.overlaps(e.Authored) {
			return nil, fmt.Errorf("entry %d: authored span [%d,%d) overlaps [%d,%d)",
				i, e.Authored.Start, e.Authored.End(), sorted[i-1].Authored.Start, sorted[i-1].Authored.End())
		}
	}

	byLang := make(map[Language][]Span)
	for _, e := range sorted {
		byLang[e.Language] = append(byLang[e.Language], e.Generated)
	}
	for lang, spans := range byLang {
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
		for i := 1; i < len(spans); i++ {
			if spans[i-1].overlaps(spans[i]) {
				return nil, fmt.Errorf("%s: generated span [%d,%d) overlaps [%d,%d)",
					lang, spans[i].Start, spans[i].End(), spans[i-1].Start, spans[i-1].End())
			}
		}
	}

	return &Table{entries: sorted}, nil
}

// MustTable is NewTable for literals known to be valid. It panics on error.
func MustTable(entries ...Entry) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries ordered by authored start.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	result := make([]Entry, len(t.entries))
	copy(result, t.entries)
	return result
}

// Languages returns the distinct languages that own at least one entry.
func (t *Table) Languages() []Language {
	seen := make(map[Language]bool)
	var langs []Language
	for _, e := range t.all() {
		if !seen[e.Language] {
			seen[e.Language] = true
			langs = append(langs, e.Language)
		}
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

func (t *Table) all() []Entry {
	if t == nil {
		return nil
	}
	return t.entries
}

// find returns the entry owning offset, measured in the span picked by span,
// among the entries match accepts.
//
// Containment is closed-open. When no span contains the offset, a
// zero-length entry at the offset owns it, then an entry ending exactly
// there: zero-length entries mark insertion points, and editors place the
// cursor after the last character of an expression.
func (t *Table) find(offset int, span func(Entry) Span, match func(Entry) bool) (Entry, bool) {
	entries := t.all()
	for _, e := range entries {
		if match(e) && span(e).Contains(offset) {
			return e, true
		}
	}
	for _, e := range entries {
		if s := span(e); match(e) && s.Length == 0 && s.Start == offset {
			return e, true
		}
	}
	for _, e := range entries {
		if match(e) && span(e).End() == offset {
			return e, true
		}
	}
	return Entry{}, false
}

func authoredSpan(e Entry) Span  { return e.Authored }
func generatedSpan(e Entry) Span { return e.Generated }

// findAuthored returns the entry owning an authored offset.
func (t *Table) findAuthored(offset int) (Entry, bool) {
	return t.find(offset, authoredSpan, func(Entry) bool { return true })
}

// findGenerated is findAuthored in the inverse direction, restricted to one
// generated document.
func (t *Table) findGenerated(lang Language, offset int) (Entry, bool) {
	return t.find(offset, generatedSpan, func(e Entry) bool { return e.Language == lang })
}

// findGeneratedEnd resolves the exclusive end of a generated range. An
// entry ending at the offset owns it before one that starts there.
func (t *Table) findGeneratedEnd(lang Language, offset int) (Entry, bool) {
	for _, e := range t.all() {
		if e.Language == lang && e.Generated.Length > 0 && e.Generated.End() == offset {
			return e, true
		}
	}
	return t.findGenerated(lang, offset)
}

// toAuthored projects a generated offset through e, clamped to the
// authored span.
func (e Entry) toAuthored(generatedOffset int) int {
	delta := generatedOffset - e.Generated.Start
	if delta > e.Authored.Length {
		delta = e.Authored.Length
	}
	return e.Authored.Start + delta
}

// ToAuthored maps an offset in the generated document for lang back to the
// authored document. It returns false when the offset lies in generated
// scaffolding that no authored text produced.
func (t *Table) ToAuthored(lang Language, generatedOffset int) (int, bool) {
	e, ok := t.findGenerated(lang, generatedOffset)
	if !ok {
		log.Mapping("ToAuthored: no %s mapping covers generated offset %d", lang, generatedOffset)
		return 0, false
	}
	return e.toAuthored(generatedOffset), true
}

// ToAuthoredRange maps the generated range [start, end) of lang back to the
// authored document. Both ends must fall in the same entry, so a mapped
// range never covers the host text between two regions.
func (t *Table) ToAuthoredRange(lang Language, start, end int) (int, int, bool) {
	if end < start {
		return 0, 0, false
	}
	first, ok := t.findGenerated(lang, start)
	if !ok {
		log.Mapping("ToAuthoredRange: no %s mapping covers generated offset %d", lang, start)
		return 0, 0, false
	}
	if end == start {
		a := first.toAuthored(start)
		return a, a, true
	}

	last, ok := t.findGeneratedEnd(lang, end)
	if !ok || last != first {
		log.Mapping("ToAuthoredRange: %s range [%d,%d) is not inside one mapping", lang, start, end)
		return 0, 0, false
	}
	if end == first.Generated.End() {
		return first.toAuthored(start), first.Authored.End(), true
	}
	return first.toAuthored(start), first.toAuthored(end), true
}
