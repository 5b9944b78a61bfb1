package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// DidOpenParams are the parameters of textDocument/didOpen.
type DidOpenParams struct {
	TextDocument protocol.TextDocumentItem `json:"textDocument"`
}

// DidChangeParams are the parameters of textDocument/didChange.
type DidChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent         `json:"contentChanges"`
}

// TextDocumentContentChangeEvent is one change. The server asks for full
// sync, so only Text is used.
type TextDocumentContentChangeEvent struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// DidCloseParams are the parameters of textDocument/didClose.
type DidCloseParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveParams are the parameters of textDocument/didSave.
type DidSaveParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// MessageType is the severity of a window/logMessage.
type MessageType int

// Message severities
const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
)

// LogMessageParams are the parameters of window/logMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p DidOpenParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	doc := p.TextDocument
	log.Server("Opened %s (version %d)", doc.URI, doc.Version)
	s.update(ctx, doc.URI, doc.Text, doc.Version)

	if s.artifacts != nil {
		if err := s.artifacts.Watch(doc.URI); err != nil {
			log.Error("server", "Watching artifacts of %s: %v", doc.URI, err)
		}
	}
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p DidChangeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if len(p.ContentChanges) == 0 {
		return nil, nil
	}

	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	s.update(ctx, p.TextDocument.URI, text, p.TextDocument.Version)
	return nil, nil
}

func (s *Server) handleDidClose(params json.RawMessage) (any, *Error) {
	var p DidCloseParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	uri := p.TextDocument.URI
	if s.artifacts != nil {
		s.artifacts.Unwatch(uri)
	}

	s.docMu.Lock()
	defer s.docMu.Unlock()

	snap := s.store.Remove(uri)
	if snap == nil {
		return nil, nil
	}
	log.Server("Closed %s", uri)
	if s.docSync != nil {
		if err := s.docSync.CloseSnapshot(snap); err != nil {
			log.Error("server", "Closing generated documents of %s: %v", uri, err)
		}
	}
	return nil, nil
}

// handleDidSave reloads the document. Saving is what triggers the
// transpiler in most editor setups, so the artifacts are likely new.
func (s *Server) handleDidSave(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p DidSaveParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	s.refresh(ctx, p.TextDocument.URI)
	return nil, nil
}

// refresh transpiles the current version of an open document again.
func (s *Server) refresh(ctx context.Context, uri string) {
	s.docMu.Lock()
	defer s.docMu.Unlock()

	snap := s.store.Get(uri)
	if snap == nil {
		return
	}
	s.updateLocked(ctx, uri, snap.Text, snap.Version)
}

// update transpiles one document version, stores the snapshot and mirrors
// its generated documents to the foreign servers. A document that fails to
// transpile is still stored, with no generated documents, so requests on it
// end unresolved instead of not found.
func (s *Server) update(ctx context.Context, uri, text string, version int) {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	s.updateLocked(ctx, uri, text, version)
}

func (s *Server) updateLocked(ctx context.Context, uri, text string, version int) {
	snap, err := s.transpiler.Transpile(ctx, uri, text, version)
	if err != nil {
		log.Error("server", "Transpiling %s: %v", uri, err)
		s.logMessage(MessageWarning, fmt.Sprintf("gsxls: %s has no generated documents: %v", uri, err))
		snap = &document.Snapshot{URI: uri, Version: version, Text: text, Table: mapping.MustTable()}
	}

	prev := s.store.Get(uri)
	if cur := s.store.Put(snap); cur != snap {
		log.Server("Ignoring version %d of %s, have %d", version, uri, cur.Version)
		return
	}
	log.Mapping("Stored %s version %d with %d mappings", uri, version, snap.Table.Len())

	if s.docSync == nil {
		return
	}
	if dropped := droppedGenerated(prev, snap); dropped != nil {
		if err := s.docSync.CloseSnapshot(dropped); err != nil {
			log.Error("server", "Closing dropped generated documents of %s: %v", uri, err)
		}
	}
	if err := s.docSync.SyncSnapshot(snap); err != nil {
		log.Error("server", "Syncing generated documents of %s: %v", uri, err)
	}
}

// droppedGenerated returns the generated documents prev had that next lost,
// or nil.
func droppedGenerated(prev, next *document.Snapshot) *document.Snapshot {
	if prev == nil {
		return nil
	}
	var gone map[mapping.Language]document.GeneratedDocument
	for lang, g := range prev.Generated {
		if _, ok := next.Generated[lang]; ok {
			continue
		}
		if gone == nil {
			gone = make(map[mapping.Language]document.GeneratedDocument)
		}
		gone[lang] = g
	}
	if gone == nil {
		return nil
	}
	return &document.Snapshot{URI: prev.URI, Version: prev.Version, Generated: gone}
}

func (s *Server) logMessage(typ MessageType, msg string) {
	if err := s.sendNotification("window/logMessage", LogMessageParams{Type: typ, Message: msg}); err != nil {
		log.Error("server", "Sending log message: %v", err)
	}
}
