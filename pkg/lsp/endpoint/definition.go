package endpoint

import (
	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// FeatureDefinition switches textDocument/definition on and off.
const FeatureDefinition = "definition"

// NewDefinition returns the textDocument/definition handler. Definitions
// inside another open .gsx file land in that file's authored text.
func NewDefinition(deps delegate.Deps, features delegate.Features) Handler {
	return &handler[protocol.TextDocumentPositionParams]{
		deps: deps,
		reg:  Registration{Capability: "definitionProvider", Options: true},
		kind: delegate.Kind[protocol.TextDocumentPositionParams]{
			Method:    "textDocument/definition",
			Languages: []mapping.Language{mapping.LanguageGo, mapping.LanguageTailwind},
			Gates: []delegate.Gate[protocol.TextDocumentPositionParams]{
				delegate.FeatureGate[protocol.TextDocumentPositionParams](features, FeatureDefinition),
			},
			Document: positionDocument,
			Position: positionOf,
			Payload:  positionPayload,
			Decode:   delegate.Decode(delegate.ShapeLocations, delegate.ShapeLocation),
		},
	}
}
