package endpoint

import (
	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// FeatureFormatting switches on-type formatting on and off.
const FeatureFormatting = "formatting"

// OnTypeFormattingOptions are the documentOnTypeFormattingProvider options.
type OnTypeFormattingOptions struct {
	FirstTriggerCharacter string   `json:"firstTriggerCharacter"`
	MoreTriggerCharacter  []string `json:"moreTriggerCharacter,omitempty"`
}

// NewOnTypeFormatting returns the textDocument/onTypeFormatting handler.
//
// Only Go regions are formatted. The typed character must be in the
// trigger list configured for the language the position resolves to, which
// is only known after projection.
func NewOnTypeFormatting(deps delegate.Deps, features delegate.Features, triggers delegate.Triggers) Handler {
	type params = protocol.DocumentOnTypeFormattingParams

	return &handler[params]{
		deps: deps,
		reg: Registration{
			Capability: "documentOnTypeFormattingProvider",
			Options: OnTypeFormattingOptions{
				FirstTriggerCharacter: "}",
				MoreTriggerCharacter:  []string{";", "\n"},
			},
		},
		kind: delegate.Kind[params]{
			Method:    "textDocument/onTypeFormatting",
			Languages: []mapping.Language{mapping.LanguageGo},
			Gates: []delegate.Gate[params]{
				delegate.FeatureGate[params](features, FeatureFormatting),
				delegate.TriggerGate(triggers, func(p params) string { return p.Ch }),
			},
			Document: func(p params) string { return p.TextDocument.URI },
			Position: func(p params) protocol.Position { return p.Position },
			Payload: func(p params, gen document.GeneratedDocument, pos protocol.Position) any {
				return params{
					TextDocument: protocol.TextDocumentIdentifier{URI: gen.URI},
					Position:     pos,
					Ch:           p.Ch,
					Options:      p.Options,
				}
			},
			Decode: delegate.Decode(delegate.ShapeEdits),
		},
	}
}
