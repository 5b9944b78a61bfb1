package foreign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// Spec describes how to launch the language server for one language.
type Spec struct {
	Language mapping.Language
	Command  string
	Args     []string
}

// Server is a running foreign language server that owns the generated
// documents of one language.
type Server struct {
	language mapping.Language
	conn     *Conn

	cmd    *exec.Cmd
	stdin  io.Closer
	cancel context.CancelFunc

	mu     sync.Mutex
	synced map[string]syncState // generated URI -> last state sent
}

type syncState struct {
	version int
	text    string
}

// NewServer wraps an established connection. The caller owns the peer.
func NewServer(lang mapping.Language, conn *Conn) *Server {
	return &Server{
		language: lang,
		conn:     conn,
		synced:   make(map[string]syncState),
	}
}

// Start launches the language server process described by spec. The process
// is killed when ctx is done.
func Start(ctx context.Context, spec Spec) (*Server, error) {
	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("%s language server %q not found in PATH: %w", spec.Language, spec.Command, err)
	}

	procCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(procCtx, path, spec.Args...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", spec.Command, err)
	}

	log.Foreign("Started %s language server: %s %v (pid %d)", spec.Language, path, spec.Args, cmd.Process.Pid)

	s := NewServer(spec.Language, NewConn(stdout, stdin))
	s.cmd = cmd
	s.stdin = stdin
	s.cancel = cancel
	return s, nil
}

// Language returns the language the server owns.
func (s *Server) Language() mapping.Language {
	return s.language
}

// Initialize performs the initialize handshake with the workspace root.
func (s *Server) Initialize(ctx context.Context, rootURI string) error {
	initParams := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"implementation":   map[string]any{"linkSupport": false},
				"definition":       map[string]any{"linkSupport": false},
				"onTypeFormatting": map[string]any{},
			},
		},
	}

	result, err := s.conn.Call(ctx, "initialize", initParams)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", s.language, err)
	}

	log.Foreign("%s initialize result: %s", s.language, string(result))

	if err := s.conn.Notify("initialized", map[string]any{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Call forwards a request to the server.
func (s *Server) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return s.conn.Call(ctx, method, params)
}

// Sync makes the server's copy of a generated document match doc. The first
// sync opens the document; later changes replace its full text. Artifacts
// can be rewritten without a new authored version, so a changed text at the
// same version is sent under the next version the server has not seen.
func (s *Server) Sync(doc document.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, open := s.synced[doc.URI]
	if open && doc.Version <= st.version && doc.Text == st.text {
		return nil
	}

	version := doc.Version
	var err error
	if !open {
		err = s.conn.Notify("textDocument/didOpen", map[string]any{
			"textDocument": map[string]any{
				"uri":        doc.URI,
				"languageId": languageID(doc.Language),
				"version":    version,
				"text":       doc.Text,
			},
		})
	} else {
		version = max(version, st.version+1)
		err = s.conn.Notify("textDocument/didChange", map[string]any{
			"textDocument": map[string]any{
				"uri":     doc.URI,
				"version": version,
			},
			"contentChanges": []map[string]any{
				{"text": doc.Text},
			},
		})
	}
	if err != nil {
		return fmt.Errorf("syncing %s: %w", doc.URI, err)
	}

	s.synced[doc.URI] = syncState{version: version, text: doc.Text}
	return nil
}

// CloseDocument tells the server a generated document is no longer open.
func (s *Server) CloseDocument(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.synced[uri]; !open {
		return nil
	}
	delete(s.synced, uri)

	return s.conn.Notify("textDocument/didClose", map[string]any{
		"textDocument": map[string]any{"uri": uri},
	})
}

// Shutdown asks the server to exit and waits for the process.
func (s *Server) Shutdown(ctx context.Context) error {
	_, callErr := s.conn.Call(ctx, "shutdown", nil)
	if callErr == nil {
		callErr = s.conn.Notify("exit", nil)
	}
	s.conn.Close()

	if s.cmd == nil {
		return callErr
	}

	s.stdin.Close()
	waitErr := s.cmd.Wait()
	s.cancel()

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && callErr == nil {
		log.Foreign("%s language server exited: %v", s.language, exitErr)
		waitErr = nil
	}
	return errors.Join(callErr, waitErr)
}

func languageID(lang mapping.Language) string {
	switch lang {
	case mapping.LanguageGo:
		return "go"
	case mapping.LanguageTailwind:
		return "html"
	default:
		return lang.String()
	}
}
