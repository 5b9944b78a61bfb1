package delegate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

func TestDecode(t *testing.T) {
	locations := Decode(ShapeLocations, ShapeLocation, ShapeReferenceItems)
	edits := Decode(ShapeEdits)

	type tc struct {
		decoder Decoder
		raw     string
		want    Response
	}

	tests := map[string]tc{
		"null": {
			decoder: locations,
			raw:     "null",
			want:    Response{Shape: ShapeNone},
		},
		"missing result": {
			decoder: edits,
			raw:     "",
			want:    Response{Shape: ShapeNone},
		},
		"single location": {
			decoder: locations,
			raw:     `{"uri":"file:///a.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":4}}}`,
			want:    Response{Shape: ShapeLocation, Location: loc("file:///a.go", 1, 2, 1, 4)},
		},
		"location list": {
			decoder: locations,
			raw:     `[{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}]`,
			want:    Response{Shape: ShapeLocations, Locations: []protocol.Location{loc("file:///a.go", 0, 0, 0, 1)}},
		},
		"empty list takes the first list shape": {
			decoder: locations,
			raw:     "[]",
			want:    Response{Shape: ShapeLocations, Locations: []protocol.Location{}},
		},
		"empty edit list": {
			decoder: edits,
			raw:     " [ ] ",
			want:    Response{Shape: ShapeEdits, Edits: []protocol.TextEdit{}},
		},
		"reference items": {
			decoder: locations,
			raw:     `[{"id":7,"location":{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}},"kind":["read"],"containingType":"Counter"}]`,
			want: Response{Shape: ShapeReferenceItems, Items: []protocol.ReferenceItem{{
				ID:             7,
				Location:       loc("file:///a.go", 0, 0, 0, 1),
				Kind:           []string{"read"},
				ContainingType: "Counter",
			}}},
		},
		"edits": {
			decoder: edits,
			raw:     `[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"\t"}]`,
			want:    Response{Shape: ShapeEdits, Edits: []protocol.TextEdit{{Range: rng(0, 0, 0, 0), NewText: "\t"}}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := tt.decoder(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	type tc struct {
		decoder Decoder
		raw     string
	}

	tests := map[string]tc{
		"edits for a location kind": {
			decoder: Decode(ShapeLocations, ShapeLocation),
			raw:     `[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":""}]`,
		},
		"scalar for a list-only kind": {
			decoder: Decode(ShapeEdits),
			raw:     `{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}}}`,
		},
		"mixed list": {
			decoder: Decode(ShapeLocations, ShapeReferenceItems),
			raw:     `[{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}}},{"id":1,"location":{"uri":"file:///a.go"}}]`,
		},
		"location links": {
			decoder: Decode(ShapeLocations, ShapeLocation),
			raw:     `[{"targetUri":"file:///a.go","targetRange":{},"targetSelectionRange":{}}]`,
		},
		"string": {
			decoder: Decode(ShapeLocations),
			raw:     `"nope"`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				_, ok := r.(ContractViolation)
				assert.True(t, ok, "panic value %T", r)
			}()
			tt.decoder(json.RawMessage(tt.raw))
		})
	}
}

func TestResponseJSON(t *testing.T) {
	type tc struct {
		resp Response
		want string
	}

	tests := map[string]tc{
		"none":           {resp: Response{Shape: ShapeNone}, want: "null"},
		"nil locations":  {resp: Response{Shape: ShapeLocations}, want: "[]"},
		"nil edits":      {resp: Response{Shape: ShapeEdits}, want: "[]"},
		"nil items":      {resp: Response{Shape: ShapeReferenceItems}, want: "[]"},
		"single":         {resp: Response{Shape: ShapeLocation, Location: loc("file:///a.gsx", 0, 1, 0, 2)}, want: `{"uri":"file:///a.gsx","range":{"start":{"line":0,"character":1},"end":{"line":0,"character":2}}}`},
		"embedded value": {resp: Response{Shape: ShapeEdits, Edits: []protocol.TextEdit{{Range: rng(0, 0, 0, 0), NewText: "x"}}}, want: `[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"x"}]`},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestOutcome(t *testing.T) {
	a := Answer(3)
	v, ok := a.Value()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, "answer", a.String())

	n := NoAnswer[int](TriggerRejected)
	_, ok = n.Value()
	assert.False(t, ok)
	assert.Equal(t, KindNoAnswer, n.Kind())
	assert.Equal(t, "no_answer(trigger_rejected)", n.String())

	f := Failed[int](ErrBackend)
	assert.Equal(t, KindFailed, f.Kind())
	assert.ErrorIs(t, f.Err(), ErrBackend)
	assert.Equal(t, ReasonNone, f.Reason())
}
