package delegate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// Shape tags the variant held by a Response.
type Shape int

const (
	// ShapeNone is a null result.
	ShapeNone Shape = iota
	// ShapeLocation is a single Location.
	ShapeLocation
	// ShapeLocations is a Location list.
	ShapeLocations
	// ShapeReferenceItems is a ReferenceItem list.
	ShapeReferenceItems
	// ShapeEdits is a TextEdit list.
	ShapeEdits
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeLocation:
		return "location"
	case ShapeLocations:
		return "locations"
	case ShapeReferenceItems:
		return "reference_items"
	case ShapeEdits:
		return "edits"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Response is the result of a foreign call. Only the field matching Shape is
// meaningful.
type Response struct {
	Shape     Shape
	Location  protocol.Location
	Locations []protocol.Location
	Items     []protocol.ReferenceItem
	Edits     []protocol.TextEdit
}

// Len returns the number of results held.
func (r Response) Len() int {
	switch r.Shape {
	case ShapeNone:
		return 0
	case ShapeLocation:
		return 1
	case ShapeLocations:
		return len(r.Locations)
	case ShapeReferenceItems:
		return len(r.Items)
	case ShapeEdits:
		return len(r.Edits)
	}
	violate("unknown response shape %s", r.Shape)
	return 0
}

// MarshalJSON encodes the held variant as an LSP result. Empty lists encode
// as [] rather than null.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Shape {
	case ShapeNone:
		return []byte("null"), nil
	case ShapeLocation:
		return json.Marshal(r.Location)
	case ShapeLocations:
		if r.Locations == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Locations)
	case ShapeReferenceItems:
		if r.Items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Items)
	case ShapeEdits:
		if r.Edits == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Edits)
	}
	return nil, fmt.Errorf("unknown response shape %s", r.Shape)
}

// Decoder turns a raw foreign result into a Response.
type Decoder func(raw json.RawMessage) Response

// Decode returns a decoder accepting null plus the given shapes. A value in
// none of them is a contract violation and panics. An empty list decodes as
// the first list shape given.
func Decode(shapes ...Shape) Decoder {
	return func(raw json.RawMessage) Response {
		resp, ok := decode(raw, shapes)
		if !ok {
			violate("result %s matches none of %v", preview(raw), shapes)
		}
		return resp
	}
}

func decode(raw json.RawMessage, accepted []Shape) (Response, bool) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Response{Shape: ShapeNone}, true
	}

	switch data[0] {
	case '{':
		if !slices.Contains(accepted, ShapeLocation) {
			return Response{}, false
		}
		if shape, ok := elementShape(data); !ok || shape != ShapeLocations {
			return Response{}, false
		}
		var loc protocol.Location
		if err := json.Unmarshal(data, &loc); err != nil {
			return Response{}, false
		}
		return Response{Shape: ShapeLocation, Location: loc}, true

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return Response{}, false
		}
		if len(elems) == 0 {
			for _, s := range accepted {
				if s == ShapeLocations || s == ShapeReferenceItems || s == ShapeEdits {
					return empty(s), true
				}
			}
			return Response{}, false
		}

		shape, ok := elementShape(elems[0])
		if !ok || !slices.Contains(accepted, shape) {
			return Response{}, false
		}
		for _, e := range elems[1:] {
			if s, ok := elementShape(e); !ok || s != shape {
				return Response{}, false
			}
		}

		resp := Response{Shape: shape}
		var err error
		switch shape {
		case ShapeLocations:
			err = json.Unmarshal(data, &resp.Locations)
		case ShapeReferenceItems:
			err = json.Unmarshal(data, &resp.Items)
		case ShapeEdits:
			err = json.Unmarshal(data, &resp.Edits)
		}
		return resp, err == nil
	}
	return Response{}, false
}

// elementShape classifies one list element by the fields it carries.
func elementShape(elem json.RawMessage) (Shape, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return ShapeNone, false
	}
	has := func(name string) bool {
		_, ok := fields[name]
		return ok
	}

	switch {
	case has("newText") && has("range"):
		return ShapeEdits, true
	case has("location"):
		return ShapeReferenceItems, true
	case has("uri") && has("range"):
		return ShapeLocations, true
	}
	return ShapeNone, false
}

func empty(s Shape) Response {
	switch s {
	case ShapeLocations:
		return Response{Shape: s, Locations: []protocol.Location{}}
	case ShapeReferenceItems:
		return Response{Shape: s, Items: []protocol.ReferenceItem{}}
	case ShapeEdits:
		return Response{Shape: s, Edits: []protocol.TextEdit{}}
	}
	return Response{Shape: s}
}

func preview(raw json.RawMessage) string {
	const limit = 120
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
