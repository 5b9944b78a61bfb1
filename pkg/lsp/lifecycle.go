package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProcessID    *int            `json:"processId"`
	RootURI      string          `json:"rootUri"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// InitializeResult is the response to initialize.
type InitializeResult struct {
	Capabilities map[string]any `json:"capabilities"`
	ServerInfo   *ServerInfo    `json:"serverInfo,omitempty"`
}

// ServerInfo identifies the server to the editor.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TextDocumentSyncKind is how document changes are sent.
type TextDocumentSyncKind int

// SyncFull sends the whole document on every change.
const SyncFull TextDocumentSyncKind = 1

// TextDocumentSyncOptions are the textDocumentSync capability.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose"`
	Change    TextDocumentSyncKind `json:"change"`
	Save      *SaveOptions         `json:"save,omitempty"`
}

// SaveOptions asks for didSave notifications.
type SaveOptions struct {
	IncludeText bool `json:"includeText"`
}

// CancelParams are the parameters of $/cancelRequest.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *Error) {
	var p InitializeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	s.rootURI = p.RootURI
	s.initialized = true
	log.Server("Initialized for workspace %s", p.RootURI)

	return InitializeResult{
		Capabilities: s.router.Capabilities(),
		ServerInfo:   &ServerInfo{Name: "gsxls", Version: s.version},
	}, nil
}

// handleInitialized starts the foreign language servers in the background.
func (s *Server) handleInitialized(ctx context.Context) (any, *Error) {
	log.Server("Client initialized")

	if s.startForeign != nil {
		rootURI := s.rootURI
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.initForeign(ctx, rootURI)
		}()
	}
	return nil, nil
}

// initForeign starts the foreign servers and syncs the documents opened
// while they were starting. A start error is reported to the editor; any
// servers that did come up are still used, and requests for the missing
// languages fail as unavailable.
func (s *Server) initForeign(ctx context.Context, rootURI string) {
	docSync, err := s.startForeign(ctx, rootURI)
	if err != nil {
		log.Error("foreign", "Failed to start language servers: %v", err)
		s.logMessage(MessageError, fmt.Sprintf("gsxls: language servers unavailable: %v", err))
	}
	if docSync == nil {
		return
	}

	s.docMu.Lock()
	defer s.docMu.Unlock()

	s.docSync = docSync
	for _, snap := range s.store.All() {
		if err := docSync.SyncSnapshot(snap); err != nil {
			log.Error("server", "Syncing generated documents of %s: %v", snap.URI, err)
		}
	}
	log.Server("Language servers ready")
}

// handleShutdown stops accepting requests and waits for the in-flight ones
// to reply, so the shutdown response is the last one sent.
func (s *Server) handleShutdown() (any, *Error) {
	s.shutdown = true
	s.requests.Wait()
	log.Server("Shutdown complete")
	return nil, nil
}

func (s *Server) handleExit() {
	s.exited = true
}

func (s *Server) handleCancelRequest(params json.RawMessage) (any, *Error) {
	var p CancelParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	s.cancelRequest(p.ID)
	return nil, nil
}
