// Package protocol holds the Language Server Protocol types shared by the
// server, the delegation core and the foreign language server client.
package protocol

import "strings"

// Position represents a position in a document (0-indexed).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range represents a range in a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location in a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem is a document transferred on didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentPositionParams contains position parameters.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// FormattingOptions represents formatting options.
type FormattingOptions struct {
	TabSize                int  `json:"tabSize"`
	InsertSpaces           bool `json:"insertSpaces"`
	TrimTrailingWhitespace bool `json:"trimTrailingWhitespace,omitempty"`
	InsertFinalNewline     bool `json:"insertFinalNewline,omitempty"`
	TrimFinalNewlines      bool `json:"trimFinalNewlines,omitempty"`
}

// DocumentOnTypeFormattingParams are the parameters of textDocument/onTypeFormatting.
type DocumentOnTypeFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
	Ch           string                 `json:"ch"`
	Options      FormattingOptions      `json:"options"`
}

// TextEdit represents a text edit.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// ReferenceItem is a reference result richer than a bare Location. Servers
// that know more about a symbol than its position send these instead of
// Location lists.
type ReferenceItem struct {
	ID               int      `json:"id"`
	Location         Location `json:"location"`
	Kind             []string `json:"kind,omitempty"`
	DefinitionText   string   `json:"definitionText,omitempty"`
	ContainingType   string   `json:"containingType,omitempty"`
	ContainingMember string   `json:"containingMember,omitempty"`
	DisplayPath      string   `json:"displayPath,omitempty"`
	ProjectName      string   `json:"projectName,omitempty"`
}

// PositionToOffset converts a Position to a byte offset in the content.
// Characters past the end of a line clamp to the line end; lines past the
// end of the content clamp to len(content).
func PositionToOffset(content string, pos Position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}

	line := 0
	start := 0
	for line < pos.Line {
		i := strings.IndexByte(content[start:], '\n')
		if i < 0 {
			return len(content)
		}
		start += i + 1
		line++
	}

	end := len(content)
	if i := strings.IndexByte(content[start:], '\n'); i >= 0 {
		end = start + i
	}
	if start+pos.Character > end {
		return end
	}
	return start + pos.Character
}

// OffsetToPosition converts a byte offset to a Position.
func OffsetToPosition(content string, offset int) Position {
	line := 0
	col := 0

	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}

	return Position{Line: line, Character: col}
}
