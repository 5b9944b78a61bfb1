// Package foreign talks to the language servers that own the embedded
// languages of a .gsx file (gopls for Go, the Tailwind CSS language server
// for class attributes) over JSON-RPC 2.0 with LSP base-protocol framing.
package foreign

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
	"sync/atomic"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

// CodeRequestCancelled is the LSP error code for a cancelled request.
const CodeRequestCancelled = -32800

// ErrClosed is returned for calls on a connection whose peer has gone away.
var ErrClosed = errors.New("foreign connection closed")

// RemoteError is an error response sent by a foreign language server.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("foreign server error %d: %s", e.Code, e.Message)
}

// request is an outgoing JSON-RPC request or notification.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// reply answers a request the foreign server sent us.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// message is any incoming JSON-RPC message.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

type result struct {
	raw json.RawMessage
	err error
}

// Conn is a JSON-RPC client connection to one foreign language server.
// It is safe for concurrent use; every Call is an independent round trip.
type Conn struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // protects writes

	nextID atomic.Int64

	pending   map[int64]chan result
	pendingMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewConn creates a connection reading responses from r and writing
// requests to w, and starts its read loop.
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{
		reader:  bufio.NewReader(r),
		writer:  w,
		pending: make(map[int64]chan result),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a request and waits for its response.
//
// If ctx ends first the request is abandoned, the server is sent
// $/cancelRequest, and ctx.Err() is returned. A server reply with code
// RequestCancelled is reported as context.Canceled.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, c.terminalErr()
	default:
	}

	id := c.nextID.Add(1)

	respChan := make(chan result, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		if err := c.Notify("$/cancelRequest", map[string]any{"id": id}); err != nil {
			log.Foreign("Failed to cancel request %d: %v", id, err)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.terminalErr()
	case res := <-respChan:
		var remote *RemoteError
		if errors.As(res.err, &remote) && remote.Code == CodeRequestCancelled {
			return nil, fmt.Errorf("%w: %w", context.Canceled, remote)
		}
		return res.raw, res.err
	}
}

// Notify sends a notification (no response expected).
func (c *Conn) Notify(method string, params any) error {
	return c.send(request{JSONRPC: "2.0", Method: method, Params: params})
}

// Close marks the connection closed and fails every pending call.
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)
	})
}

func (c *Conn) terminalErr() error {
	if errors.Is(c.closeErr, ErrClosed) {
		return c.closeErr
	}
	return fmt.Errorf("%w: %w", ErrClosed, c.closeErr)
}

func (c *Conn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	log.Foreign("Sending: %s", string(data))

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.writer, header); err != nil {
		return err
	}
	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	return nil
}

// readLoop reads messages until the stream ends.
func (c *Conn) readLoop() {
	for {
		data, err := c.readMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Foreign("Error reading message: %v", err)
			}
			c.shutdown(err)
			return
		}

		log.Foreign("Received: %s", string(data))

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Foreign("Error parsing message: %v", err)
			continue
		}

		switch {
		case msg.Method != "" && len(msg.ID) > 0:
			// Server-to-client request (workspace/configuration,
			// window/workDoneProgress/create, ...). Answer with null so
			// the server never blocks on us.
			if err := c.send(reply{JSONRPC: "2.0", ID: msg.ID, Result: nil}); err != nil {
				log.Foreign("Failed to answer %s: %v", msg.Method, err)
			}
		case msg.Method != "":
			// Notification: diagnostics, progress, logs.
		default:
			c.deliver(msg)
		}
	}
}

func (c *Conn) deliver(msg message) {
	id, err := strconv.ParseInt(string(msg.ID), 10, 64)
	if err != nil {
		log.Foreign("Response with unexpected id %s", string(msg.ID))
		return
	}

	res := result{raw: msg.Result}
	if msg.Error != nil {
		res = result{err: msg.Error}
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if ok {
		ch <- res
	}
}

// readMessage reads a single JSON-RPC message.
func (c *Conn) readMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := c.reader.ReadString('\n')
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
	if _, err := io.ReadFull(c.reader, content); err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return content, nil
}
