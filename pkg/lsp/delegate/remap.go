package delegate

import (
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// Remapper rewrites foreign results from generated coordinates into
// authored coordinates.
type Remapper struct {
	store *document.Store
}

// NewRemapper creates a remapper. Locations in the generated documents of
// other open .gsx files are resolved through store.
func NewRemapper(store *document.Store) *Remapper {
	return &Remapper{store: store}
}

// Remap rewrites resp, which answered a request against the generated
// document of lang in snap.
//
// Locations in generated documents move to the authored document that
// produced them; locations in ordinary files are kept as they are. List
// items that cannot be mapped are dropped. It returns false when a single
// location cannot be mapped, or when every item of a non-empty list was
// dropped.
func (m *Remapper) Remap(snap *document.Snapshot, lang mapping.Language, resp Response) (Response, bool) {
	switch resp.Shape {
	case ShapeNone:
		return resp, true

	case ShapeLocation:
		loc, ok := m.location(snap, resp.Location)
		if !ok {
			return Response{}, false
		}
		return Response{Shape: ShapeLocation, Location: loc}, true

	case ShapeLocations:
		out := make([]protocol.Location, 0, len(resp.Locations))
		for _, l := range resp.Locations {
			if loc, ok := m.location(snap, l); ok {
				out = append(out, loc)
			}
		}
		if len(out) == 0 && len(resp.Locations) > 0 {
			return Response{}, false
		}
		return Response{Shape: ShapeLocations, Locations: out}, true

	case ShapeReferenceItems:
		out := make([]protocol.ReferenceItem, 0, len(resp.Items))
		for _, item := range resp.Items {
			loc, ok := m.location(snap, item.Location)
			if !ok {
				continue
			}
			item.Location = loc
			if document.IsGeneratedURI(item.DisplayPath) {
				item.DisplayPath = loc.URI
			}
			out = append(out, item)
		}
		if len(out) == 0 && len(resp.Items) > 0 {
			return Response{}, false
		}
		return Response{Shape: ShapeReferenceItems, Items: out}, true

	case ShapeEdits:
		gen, ok := snap.GeneratedFor(lang)
		if !ok {
			return Response{}, false
		}
		out := make([]protocol.TextEdit, 0, len(resp.Edits))
		for _, e := range resp.Edits {
			rng, ok := toAuthored(snap, gen, e.Range)
			if !ok {
				log.Mapping("Dropping edit at %v: outside any %s mapping", e.Range, lang)
				continue
			}
			out = append(out, protocol.TextEdit{Range: rng, NewText: e.NewText})
		}
		if len(out) == 0 && len(resp.Edits) > 0 {
			return Response{}, false
		}
		return Response{Shape: ShapeEdits, Edits: out}, true
	}

	violate("remap unknown response shape %s", resp.Shape)
	return Response{}, false
}

// location maps one location. The request's own snapshot is used for its
// generated documents so the whole request sees a single version.
func (m *Remapper) location(snap *document.Snapshot, loc protocol.Location) (protocol.Location, bool) {
	if !document.IsGeneratedURI(loc.URI) {
		return loc, true
	}

	owner := snap
	gen, ok := generatedByURI(owner, loc.URI)
	if !ok && m.store != nil {
		owner = m.store.GetByGeneratedURI(loc.URI)
		if owner != nil {
			gen, ok = generatedByURI(owner, loc.URI)
		}
	}
	if !ok {
		log.Mapping("Dropping location in unknown generated document %s", loc.URI)
		return protocol.Location{}, false
	}

	rng, ok := toAuthored(owner, gen, loc.Range)
	if !ok {
		log.Mapping("Dropping location %s %v: outside any %s mapping", loc.URI, loc.Range, gen.Language)
		return protocol.Location{}, false
	}
	return protocol.Location{URI: owner.URI, Range: rng}, true
}

func generatedByURI(snap *document.Snapshot, uri string) (document.GeneratedDocument, bool) {
	for _, g := range snap.Generated {
		if g.URI == uri {
			return g, true
		}
	}
	return document.GeneratedDocument{}, false
}

// toAuthored maps a range of gen into the authored text of snap. Both ends
// must map through the same entry.
func toAuthored(snap *document.Snapshot, gen document.GeneratedDocument, r protocol.Range) (protocol.Range, bool) {
	start, end, ok := snap.Table.ToAuthoredRange(gen.Language,
		protocol.PositionToOffset(gen.Text, r.Start),
		protocol.PositionToOffset(gen.Text, r.End))
	if !ok {
		return protocol.Range{}, false
	}
	return protocol.Range{Start: snap.PositionAt(start), End: snap.PositionAt(end)}, true
}
