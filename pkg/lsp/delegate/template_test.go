package delegate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

var goTriggers = triggers{mapping.LanguageGo: {"}", ";", "\n"}}

func TestInsertionPointFormatting(t *testing.T) {
	h := newHarness(insertionSnapshot())
	h.goEP.result = mustJSON(t, []protocol.TextEdit{{Range: rng(0, 5, 0, 5), NewText: "\n"}})

	out := Run(t.Context(), h.deps, typingKind(flags{"formatting": true}, goTriggers), posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"})

	calls := h.goEP.Calls()
	require.Len(t, calls, 1)
	params, ok := calls[0].params.(protocol.DocumentOnTypeFormattingParams)
	require.True(t, ok)
	assert.Equal(t, goURI, params.TextDocument.URI)
	assert.Equal(t, pos(0, 5), params.Position)
	assert.Equal(t, "}", params.Ch)

	resp, ok := out.Value()
	require.True(t, ok, out.String())
	assert.Equal(t, ShapeEdits, resp.Shape)
	assert.Equal(t, []protocol.TextEdit{{Range: rng(0, 17, 0, 17), NewText: "\n"}}, resp.Edits)

	// A location at the generated insertion point maps back the same way.
	back, ok := h.deps.Remapper.Remap(insertionSnapshot(), mapping.LanguageGo, Response{Shape: ShapeLocation, Location: loc(goURI, 0, 5, 0, 5)})
	require.True(t, ok)
	assert.Equal(t, loc(authoredURI, 0, 17, 0, 17), back.Location)
}

func TestNoAnswerWithoutDispatch(t *testing.T) {
	type tc struct {
		snaps  []*document.Snapshot
		kind   Kind[posReq]
		req    posReq
		reason Reason
	}

	enabled := flags{"formatting": true}
	disabled := flags{}
	emptyDoc := insertionSnapshot()
	emptyDoc.Table = mapping.MustTable()

	tests := map[string]tc{
		"trigger not allowed for go": {
			snaps:  []*document.Snapshot{insertionSnapshot()},
			kind:   typingKind(enabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "a"},
			reason: TriggerRejected,
		},
		"host position": {
			snaps:  []*document.Snapshot{insertionSnapshot()},
			kind:   typingKind(enabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 3), Ch: "}"},
			reason: Unresolved,
		},
		"empty mapping table": {
			snaps:  []*document.Snapshot{emptyDoc},
			kind:   typingKind(enabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"},
			reason: Unresolved,
		},
		"empty mapping table with feature disabled": {
			snaps:  []*document.Snapshot{emptyDoc},
			kind:   typingKind(disabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"},
			reason: FeatureDisabled,
		},
		"feature disabled": {
			snaps:  []*document.Snapshot{insertionSnapshot()},
			kind:   typingKind(disabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"},
			reason: FeatureDisabled,
		},
		"feature disabled wins over missing document": {
			kind:   typingKind(disabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"},
			reason: FeatureDisabled,
		},
		"feature disabled wins over bad trigger": {
			snaps:  []*document.Snapshot{insertionSnapshot()},
			kind:   typingKind(disabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "a"},
			reason: FeatureDisabled,
		},
		"document not open": {
			kind:   typingKind(enabled, goTriggers),
			req:    posReq{URI: authoredURI, Pos: pos(0, 17), Ch: "}"},
			reason: DocumentNotFound,
		},
		"tailwind region for go-only kind": {
			snaps:  []*document.Snapshot{counterSnapshot(1)},
			kind:   typingKind(enabled, triggers{mapping.LanguageTailwind: {"}"}}),
			req:    posReq{URI: authoredURI, Pos: pos(0, 14), Ch: "}"},
			reason: LanguageRejected,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(tt.snaps...)

			out := Run(t.Context(), h.deps, tt.kind, tt.req)

			assert.Equal(t, KindNoAnswer, out.Kind(), out.String())
			assert.Equal(t, tt.reason, out.Reason())
			assert.Zero(t, h.totalCalls())
		})
	}
}

func TestHostPositionsNeverFail(t *testing.T) {
	snap := counterSnapshot(1)
	h := newHarness(snap)
	h.goEP.result = "[]"
	h.twEP.result = "[]"

	for offset := 0; offset <= len(snap.Text); offset++ {
		p := mapping.Resolve(snap.Table, offset, false)
		out := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: snap.PositionAt(offset)})

		if p.Resolved {
			assert.Equal(t, KindAnswer, out.Kind(), "offset %d", offset)
			continue
		}
		assert.Equal(t, KindNoAnswer, out.Kind(), "offset %d", offset)
		assert.Equal(t, Unresolved, out.Reason(), "offset %d", offset)
	}
}

func TestEmptyListIsAnAnswer(t *testing.T) {
	h := newHarness(counterSnapshot(1))
	h.goEP.result = "[]"

	out := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	resp, ok := out.Value()
	require.True(t, ok, out.String())
	assert.Equal(t, ShapeLocations, resp.Shape)
	assert.Empty(t, resp.Locations)

	data, err := resp.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	unresolved := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 2)})
	assert.Equal(t, KindNoAnswer, unresolved.Kind())
}

func TestNullResultIsAnAnswer(t *testing.T) {
	h := newHarness(counterSnapshot(1))

	out := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	resp, ok := out.Value()
	require.True(t, ok)
	assert.Equal(t, ShapeNone, resp.Shape)
}

func TestGateStages(t *testing.T) {
	var seen []string
	record := func(name string, stage Stage, check func(GateInput[posReq]) bool) Gate[posReq] {
		return Gate[posReq]{
			Name:   name,
			Stage:  stage,
			Reason: TriggerRejected,
			Check: func(in GateInput[posReq]) bool {
				seen = append(seen, name)
				return check(in)
			},
		}
	}

	h := newHarness(counterSnapshot(1))
	kind := locationKind(
		record("projection", StageProjection, func(in GateInput[posReq]) bool {
			return in.Projection.Resolved && in.Projection.Language == mapping.LanguageGo
		}),
		record("document", StageDocument, func(in GateInput[posReq]) bool {
			return in.Snapshot != nil && !in.Projection.Resolved
		}),
		record("request-1", StageRequest, func(in GateInput[posReq]) bool {
			return in.Snapshot == nil
		}),
		record("request-2", StageRequest, func(in GateInput[posReq]) bool {
			return in.Request.URI == authoredURI
		}),
	)

	out := Run(t.Context(), h.deps, kind, posReq{URI: authoredURI, Pos: pos(0, 24)})
	assert.Equal(t, KindAnswer, out.Kind(), out.String())
	assert.Equal(t, []string{"request-1", "request-2", "document", "projection"}, seen)
	assert.Len(t, h.goEP.Calls(), 1)

	// The first failing gate stops evaluation.
	seen = nil
	kind.Gates = append([]Gate[posReq]{record("deny", StageRequest, func(GateInput[posReq]) bool { return false })}, kind.Gates...)
	out = Run(t.Context(), h.deps, kind, posReq{URI: authoredURI, Pos: pos(0, 24)})
	assert.Equal(t, TriggerRejected, out.Reason())
	assert.Equal(t, []string{"deny"}, seen)
}

func TestFailures(t *testing.T) {
	type tc struct {
		setup  func(h *harness) context.Context
		target error
	}

	tests := map[string]tc{
		"backend error": {
			setup: func(h *harness) context.Context {
				h.goEP.err = errors.New("gopls crashed")
				return context.Background()
			},
			target: ErrBackend,
		},
		"cancelled before dispatch": {
			setup: func(h *harness) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			target: ErrCancelled,
		},
		"cancelled during dispatch": {
			setup: func(h *harness) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				h.goEP.block = true
				h.goEP.onCall = cancel
				return ctx
			},
			target: ErrCancelled,
		},
		"cancelled by foreign server": {
			setup: func(h *harness) context.Context {
				h.goEP.err = context.Canceled
				return context.Background()
			},
			target: ErrCancelled,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(counterSnapshot(1))
			ctx := tt.setup(h)

			out := Run(ctx, h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})

			require.Equal(t, KindFailed, out.Kind(), out.String())
			assert.ErrorIs(t, out.Err(), tt.target)
		})
	}
}

func TestCancelledBeforeDispatchMakesNoCall(t *testing.T) {
	h := newHarness(counterSnapshot(1))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	out := Run(ctx, h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	assert.ErrorIs(t, out.Err(), ErrCancelled)
	assert.Zero(t, h.totalCalls())
}

func TestUnavailableLanguageServer(t *testing.T) {
	store := document.NewStore()
	store.Put(counterSnapshot(1))
	d := NewDispatcher()
	d.Register(mapping.LanguageGo, &fakeEndpoint{result: "[]"})
	deps := Deps{Store: store, Dispatcher: d, Remapper: NewRemapper(store)}

	out := Run(t.Context(), deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 14)})
	require.Equal(t, KindFailed, out.Kind())
	assert.ErrorIs(t, out.Err(), ErrBackend)
	assert.ErrorIs(t, out.Err(), ErrUnavailable)
}

func TestRequestKeepsItsSnapshot(t *testing.T) {
	h := newHarness(counterSnapshot(1))
	h.goEP.result = mustJSON(t, []protocol.Location{loc(goURI, 0, 8, 0, 13)})

	// The document is edited while the foreign call is in flight: version 2
	// moves the Go expression.
	h.goEP.onCall = func() {
		v2 := counterSnapshot(2)
		v2.Text = "{count}"
		v2.Table = mapping.MustTable(mapping.Entry{
			Authored:  mapping.Span{Start: 1, Length: 5},
			Generated: mapping.Span{Start: 8, Length: 5},
			Language:  mapping.LanguageGo,
		})
		h.store.Put(v2)
	}

	out := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	resp, ok := out.Value()
	require.True(t, ok, out.String())
	assert.Equal(t, []protocol.Location{loc(authoredURI, 0, 22, 0, 27)}, resp.Locations)
	assert.Equal(t, 2, h.store.Get(authoredURI).Version)
}

func TestRemapFailureIsNoAnswer(t *testing.T) {
	h := newHarness(counterSnapshot(1))
	// "var" is scaffolding: no authored text produced it.
	h.goEP.result = mustJSON(t, loc(goURI, 0, 0, 0, 3))

	out := Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	assert.Equal(t, KindNoAnswer, out.Kind())
	assert.Equal(t, RemapFailed, out.Reason())
}

func TestUnrecognizedResultPanics(t *testing.T) {
	h := newHarness(counterSnapshot(1))
	h.goEP.result = `{"contents":"hover text"}`

	assert.Panics(t, func() {
		Run(t.Context(), h.deps, locationKind(), posReq{URI: authoredURI, Pos: pos(0, 24)})
	})
}

func TestDispatcherContract(t *testing.T) {
	d := NewDispatcher()

	assert.Panics(t, func() {
		d.Dispatch(t.Context(), mapping.LanguageHost, "textDocument/implementation", nil)
	})
	assert.Panics(t, func() {
		d.Register(mapping.Language(42), &fakeEndpoint{})
	})

	_, err := d.Dispatch(t.Context(), mapping.LanguageTailwind, "textDocument/implementation", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
