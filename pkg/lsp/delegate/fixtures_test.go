package delegate

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

const (
	authoredURI = "file:///w/counter.gsx"
	otherURI    = "file:///w/other.gsx"
	stdlibURI   = "file:///usr/lib/go/src/fmt/print.go"
)

var (
	goURI = document.GeneratedURI(authoredURI, mapping.LanguageGo)
	twURI = document.GeneratedURI(authoredURI, mapping.LanguageTailwind)
)

// insertionSnapshot has a single zero-length Go entry: authored offset 17
// maps to generated offset 5.
func insertionSnapshot() *document.Snapshot {
	return &document.Snapshot{
		URI:     authoredURI,
		Version: 1,
		Text:    `<div class="a">{x}</div>`,
		Table: mapping.MustTable(mapping.Entry{
			Authored:  mapping.Span{Start: 17, Length: 0},
			Generated: mapping.Span{Start: 5, Length: 0},
			Language:  mapping.LanguageGo,
		}),
		Generated: map[mapping.Language]document.GeneratedDocument{
			mapping.LanguageGo: {URI: goURI, Language: mapping.LanguageGo, Version: 1, Text: "_ = x\n"},
		},
	}
}

// counterSnapshot maps a Go expression and a Tailwind class list:
//
//	<div class="p-2 m-1">{count}</div>
//	            ^12        ^22
func counterSnapshot(version int) *document.Snapshot {
	return &document.Snapshot{
		URI:     authoredURI,
		Version: version,
		Text:    `<div class="p-2 m-1">{count}</div>`,
		Table: mapping.MustTable(
			mapping.Entry{
				Authored:  mapping.Span{Start: 12, Length: 7},
				Generated: mapping.Span{Start: 12, Length: 7},
				Language:  mapping.LanguageTailwind,
			},
			mapping.Entry{
				Authored:  mapping.Span{Start: 22, Length: 5},
				Generated: mapping.Span{Start: 8, Length: 5},
				Language:  mapping.LanguageGo,
			},
		),
		Generated: map[mapping.Language]document.GeneratedDocument{
			mapping.LanguageGo:       {URI: goURI, Language: mapping.LanguageGo, Version: version, Text: "var _ = count\n"},
			mapping.LanguageTailwind: {URI: twURI, Language: mapping.LanguageTailwind, Version: version, Text: `<div class="p-2 m-1"></div>`},
		},
	}
}

// otherSnapshot is a second open document whose Go output the foreign
// server may point into.
func otherSnapshot() *document.Snapshot {
	return &document.Snapshot{
		URI:     otherURI,
		Version: 4,
		Text:    "{helper()}\n",
		Table: mapping.MustTable(mapping.Entry{
			Authored:  mapping.Span{Start: 1, Length: 8},
			Generated: mapping.Span{Start: 14, Length: 8},
			Language:  mapping.LanguageGo,
		}),
		Generated: map[mapping.Language]document.GeneratedDocument{
			mapping.LanguageGo: {
				URI:      document.GeneratedURI(otherURI, mapping.LanguageGo),
				Language: mapping.LanguageGo,
				Version:  4,
				Text:     "package main\n\nhelper()\n",
			},
		},
	}
}

func loc(uri string, sl, sc, el, ec int) protocol.Location {
	return protocol.Location{URI: uri, Range: rng(sl, sc, el, ec)}
}

func rng(sl, sc, el, ec int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

type endpointCall struct {
	method string
	params any
}

// fakeEndpoint records calls and answers with a canned result.
type fakeEndpoint struct {
	mu     sync.Mutex
	calls  []endpointCall
	result string
	err    error
	block  bool
	onCall func()
}

func (f *fakeEndpoint) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, endpointCall{method: method, params: params})
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall()
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.result), nil
}

func (f *fakeEndpoint) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]endpointCall(nil), f.calls...)
}

type flags map[string]bool

func (f flags) Enabled(feature string) bool { return f[feature] }

type triggers map[mapping.Language][]string

func (t triggers) TriggerAllowed(lang mapping.Language, ch string) bool {
	for _, c := range t[lang] {
		if c == ch {
			return true
		}
	}
	return false
}

// posReq is a minimal positional request used to instantiate kinds.
type posReq struct {
	URI string
	Pos protocol.Position
	Ch  string
}

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func positionPayload(r posReq, gen document.GeneratedDocument, p protocol.Position) any {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: gen.URI},
		Position:     p,
	}
}

// locationKind forwards to both embedded languages and accepts every
// location-like result.
func locationKind(gates ...Gate[posReq]) Kind[posReq] {
	return Kind[posReq]{
		Method:    "textDocument/implementation",
		Languages: []mapping.Language{mapping.LanguageGo, mapping.LanguageTailwind},
		Gates:     gates,
		Document:  func(r posReq) string { return r.URI },
		Position:  func(r posReq) protocol.Position { return r.Pos },
		Payload:   positionPayload,
		Decode:    Decode(ShapeLocations, ShapeLocation, ShapeReferenceItems),
	}
}

// typingKind forwards on-type formatting to Go only.
func typingKind(fl Features, tr Triggers) Kind[posReq] {
	return Kind[posReq]{
		Method:    "textDocument/onTypeFormatting",
		Languages: []mapping.Language{mapping.LanguageGo},
		Gates: []Gate[posReq]{
			FeatureGate[posReq](fl, "formatting"),
			TriggerGate(tr, func(r posReq) string { return r.Ch }),
		},
		Document: func(r posReq) string { return r.URI },
		Position: func(r posReq) protocol.Position { return r.Pos },
		Payload: func(r posReq, gen document.GeneratedDocument, p protocol.Position) any {
			return protocol.DocumentOnTypeFormattingParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: gen.URI},
				Position:     p,
				Ch:           r.Ch,
			}
		},
		Decode: Decode(ShapeEdits),
	}
}

type harness struct {
	store *document.Store
	deps  Deps
	goEP  *fakeEndpoint
	twEP  *fakeEndpoint
}

func newHarness(snaps ...*document.Snapshot) *harness {
	h := &harness{
		store: document.NewStore(),
		goEP:  &fakeEndpoint{result: "null"},
		twEP:  &fakeEndpoint{result: "null"},
	}
	for _, s := range snaps {
		h.store.Put(s)
	}

	d := NewDispatcher()
	d.Register(mapping.LanguageGo, h.goEP)
	d.Register(mapping.LanguageTailwind, h.twEP)

	h.deps = Deps{Store: h.store, Dispatcher: d, Remapper: NewRemapper(h.store)}
	return h
}

func (h *harness) totalCalls() int {
	return len(h.goEP.Calls()) + len(h.twEP.Calls())
}
