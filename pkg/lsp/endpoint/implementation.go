package endpoint

import (
	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// FeatureImplementation switches textDocument/implementation on and off.
const FeatureImplementation = "implementation"

// ImplementationOptions are the implementationProvider options.
type ImplementationOptions struct{}

// NewImplementation returns the textDocument/implementation handler. Go and
// Tailwind positions are forwarded; the answer may be a location, a
// location list or a reference item list.
func NewImplementation(deps delegate.Deps, features delegate.Features) Handler {
	return &handler[protocol.TextDocumentPositionParams]{
		deps: deps,
		reg:  Registration{Capability: "implementationProvider", Options: ImplementationOptions{}},
		kind: delegate.Kind[protocol.TextDocumentPositionParams]{
			Method:    "textDocument/implementation",
			Languages: []mapping.Language{mapping.LanguageGo, mapping.LanguageTailwind},
			Gates: []delegate.Gate[protocol.TextDocumentPositionParams]{
				delegate.FeatureGate[protocol.TextDocumentPositionParams](features, FeatureImplementation),
			},
			Document: positionDocument,
			Position: positionOf,
			Payload:  positionPayload,
			Decode:   delegate.Decode(delegate.ShapeLocations, delegate.ShapeLocation, delegate.ShapeReferenceItems),
		},
	}
}

func positionDocument(p protocol.TextDocumentPositionParams) string {
	return p.TextDocument.URI
}

func positionOf(p protocol.TextDocumentPositionParams) protocol.Position {
	return p.Position
}

// positionPayload addresses the request at the generated document.
func positionPayload(_ protocol.TextDocumentPositionParams, gen document.GeneratedDocument, pos protocol.Position) any {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: gen.URI},
		Position:     pos,
	}
}
