// Package lsp provides the Language Server Protocol server for .gsx files.
//
// Requests that point into embedded Go or Tailwind regions are answered by
// foreign language servers through the delegate package; this package owns
// the editor connection and keeps document snapshots current.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/endpoint"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

// DocumentSync mirrors generated documents onto the foreign language
// servers. *foreign.Pool implements it.
type DocumentSync interface {
	SyncSnapshot(snap *document.Snapshot) error
	CloseSnapshot(snap *document.Snapshot) error
}

// Options configures a Server.
type Options struct {
	Store      *document.Store
	Transpiler document.Transpiler
	// Handlers serve the delegated request methods. Their registrations are
	// advertised at initialize.
	Handlers []endpoint.Handler
	// Sync mirrors generated documents to foreign servers that are already
	// running.
	Sync DocumentSync
	// StartForeign, if set, starts the foreign servers in the background once
	// the editor sends initialized, rooted at the workspace it named. Open
	// documents are synced as soon as it returns. It may return a
	// DocumentSync for the servers that started together with an error for
	// the ones that did not.
	StartForeign func(ctx context.Context, rootURI string) (DocumentSync, error)
	// WatchArtifacts reloads a document when the transpiler rewrites its
	// artifacts on disk.
	WatchArtifacts bool
	Version        string
}

// Server represents the gsx LSP server.
type Server struct {
	// Input/output for JSON-RPC communication
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // protects writer

	router     *Router
	store      *document.Store
	transpiler document.Transpiler
	version    string

	startForeign func(ctx context.Context, rootURI string) (DocumentSync, error)
	background   sync.WaitGroup

	watchArtifacts bool
	artifacts      *document.ArtifactWatcher

	// docMu serializes transpile-and-store so foreign servers see versions
	// in order. It also guards docSync.
	docMu   sync.Mutex
	docSync DocumentSync

	// In-flight delegated requests by JSON-RPC id.
	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc
	requests   sync.WaitGroup

	// Server state, owned by the read loop
	initialized bool
	shutdown    bool
	exited      bool
	rootURI     string
}

// NewServer creates a new LSP server that communicates over the given reader/writer.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	s := &Server{
		reader:         bufio.NewReader(reader),
		writer:         writer,
		store:          opts.Store,
		transpiler:     opts.Transpiler,
		docSync:        opts.Sync,
		version:        opts.Version,
		startForeign:   opts.StartForeign,
		watchArtifacts: opts.WatchArtifacts,
		inflight:       make(map[string]context.CancelFunc),
	}
	if s.store == nil {
		s.store = document.NewStore()
	}
	if s.transpiler == nil {
		s.transpiler = document.NewArtifactTranspiler()
	}
	s.router = NewRouter(s, opts.Handlers...)
	return s
}

// RootURI returns the workspace root the editor sent at initialize.
func (s *Server) RootURI() string {
	return s.rootURI
}

// Run starts the LSP server main loop. It returns after exit, when the
// editor closes the connection, or when ctx is done. In-flight requests are
// cancelled and waited for before Run returns.
func (s *Server) Run(ctx context.Context) error {
	log.Server("LSP server starting")

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.requests.Wait()
		s.background.Wait()
	}()

	if s.watchArtifacts {
		w, err := document.NewArtifactWatcher(func(uri string) { s.refresh(ctx, uri) })
		if err != nil {
			log.Error("server", "Artifact watcher unavailable: %v", err)
		} else {
			s.artifacts = w
			w.Start(ctx)
			defer w.Close()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Server("Connection closed")
				return nil
			}
			log.Server("Error reading message: %v", err)
			return fmt.Errorf("reading message: %w", err)
		}

		log.Debug("Received: %s", string(msg))

		if err := s.handleMessage(ctx, msg); err != nil {
			log.Server("Error writing response: %v", err)
			return fmt.Errorf("writing response: %w", err)
		}

		if s.exited {
			log.Server("Server exit requested")
			return nil
		}
	}
}

// readMessage reads a JSON-RPC message from the input.
// Messages are formatted as HTTP-like headers followed by content:
// Content-Length: <length>\r\n
// \r\n
// <content>
func (s *Server) readMessage() ([]byte, error) {
	// Read headers
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, content); err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	return content, nil
}

// writeMessage writes a JSON-RPC message to the output.
func (s *Server) writeMessage(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(msg))
	if _, err := s.writer.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := s.writer.Write(msg); err != nil {
		return err
	}

	log.Debug("Sent: %s", string(msg))
	return nil
}

// sendNotification sends a notification (no response expected).
func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.writeMessage(data)
}

// Request represents a JSON-RPC request. Notifications have no ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // number or string, kept verbatim
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message expects no response.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC response. Exactly one of Result and Error
// is set; a null result is the JSON literal null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC and LSP error codes
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
)

// handleMessage processes a single JSON-RPC message. Delegated requests run
// on their own goroutine and reply when done; everything else is handled
// in order on the read loop.
func (s *Server) handleMessage(ctx context.Context, msg []byte) error {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return s.reply(nil, nil, &Error{Code: CodeParseError, Message: "Parse error"})
	}

	log.Debug("Handling method: %s", req.Method)

	if h, ok := s.router.Handler(req.Method); ok && !req.IsNotification() {
		if rpcErr := s.acceptRequest(); rpcErr != nil {
			return s.reply(req.ID, nil, rpcErr)
		}
		s.serve(ctx, h, req)
		return nil
	}

	result, rpcErr := s.router.Route(ctx, req)

	// Notifications don't get responses
	if req.IsNotification() {
		if rpcErr != nil {
			log.Server("Notification %s failed: %s", req.Method, rpcErr.Message)
		}
		return nil
	}
	return s.reply(req.ID, result, rpcErr)
}

func (s *Server) acceptRequest() *Error {
	if !s.initialized {
		return &Error{Code: CodeServerNotInitialized, Message: "Server not initialized"}
	}
	if s.shutdown {
		return &Error{Code: CodeInvalidRequest, Message: "Server is shutting down"}
	}
	return nil
}

// serve runs a delegated request until it answers or the editor cancels it.
func (s *Server) serve(ctx context.Context, h endpoint.Handler, req Request) {
	key := string(req.ID)
	ctx, cancel := context.WithCancel(ctx)

	s.inflightMu.Lock()
	s.inflight[key] = cancel
	s.inflightMu.Unlock()

	s.requests.Add(1)
	go func() {
		defer s.requests.Done()
		defer func() {
			s.inflightMu.Lock()
			delete(s.inflight, key)
			s.inflightMu.Unlock()
			cancel()
		}()

		result, rpcErr := toResult(h.Handle(ctx, req.Params))
		if err := s.reply(req.ID, result, rpcErr); err != nil {
			log.Error("server", "Writing %s response: %v", req.Method, err)
		}
	}()
}

// cancelRequest cancels the in-flight request with the given id, if any.
func (s *Server) cancelRequest(id json.RawMessage) {
	s.inflightMu.Lock()
	cancel, ok := s.inflight[string(id)]
	s.inflightMu.Unlock()
	if ok {
		log.Server("Cancelling request %s", string(id))
		cancel()
	}
}

// toResult maps a delegated outcome onto the JSON-RPC reply: an answer is
// the result, no answer is null, failures are errors.
func toResult(out delegate.Outcome[delegate.Response], err error) (any, *Error) {
	if err != nil {
		if errors.Is(err, endpoint.ErrInvalidParams) {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}

	switch out.Kind() {
	case delegate.KindAnswer:
		resp, _ := out.Value()
		return resp, nil
	case delegate.KindFailed:
		if errors.Is(out.Err(), delegate.ErrCancelled) {
			return nil, &Error{Code: CodeRequestCancelled, Message: out.Err().Error()}
		}
		return nil, &Error{Code: CodeInternalError, Message: out.Err().Error()}
	}
	return nil, nil
}

// reply writes the response to a request.
func (s *Server) reply(id json.RawMessage, result any, rpcErr *Error) error {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	}
	if rpcErr == nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = &Error{Code: CodeInternalError, Message: err.Error()}
		} else {
			resp.Result = data
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.writeMessage(data)
}
