package delegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
	"github.com/grindlemire/gsxls/pkg/lsp/protocol"
)

// Kind describes one delegated request type as data: where the request
// points, which languages it forwards to, its gates, how to build the
// foreign payload and which result shapes the foreign server may send.
type Kind[Req any] struct {
	// Method is the LSP method forwarded to the foreign server.
	Method string
	// Languages the request is forwarded to.
	Languages []mapping.Language
	// AcceptHost lets host markup positions resolve. The host has no
	// generated document, so such requests still end unresolved.
	AcceptHost bool
	Gates      []Gate[Req]

	// Document returns the authored document URI of the request.
	Document func(Req) string
	// Position returns the authored position of the request.
	Position func(Req) protocol.Position
	// Payload builds the foreign request addressed at the generated document.
	Payload func(req Req, gen document.GeneratedDocument, pos protocol.Position) any
	Decode  Decoder
}

// Deps are the collaborators shared by every request kind.
type Deps struct {
	Store      *document.Store
	Dispatcher *Dispatcher
	Remapper   *Remapper
}

// Run executes one delegated request:
//
//	request gates -> document lookup -> document gates -> project ->
//	language filter -> projection gates -> payload -> dispatch -> decode -> remap
//
// Each step may end the request with no answer. The snapshot found at lookup
// is used through remap even if the document changes meanwhile. Dispatch is
// the only blocking step; cancellation before or during it fails the request
// with ErrCancelled.
func Run[Req any](ctx context.Context, deps Deps, kind Kind[Req], req Req) Outcome[Response] {
	requestID := uuid.NewString()
	logger := log.Delegate(kind.Method, requestID)

	ctx, span := startSpan(ctx, kind.Method, kind.Document(req), requestID)
	defer span.End()

	out, lang := run(ctx, deps, kind, req, logger)

	recordOutcome(span, kind.Method, lang.String(), out)
	switch out.Kind() {
	case KindAnswer:
		v, _ := out.Value()
		logger.Debug("answered", slog.String("language", lang.String()), slog.String("shape", v.Shape.String()), slog.Int("results", v.Len()))
	case KindNoAnswer:
		logger.Debug("no answer", slog.String("language", lang.String()), slog.String("reason", out.Reason().String()))
	case KindFailed:
		logger.Warn("failed", slog.String("language", lang.String()), slog.Any("error", out.Err()))
	}
	return out
}

func run[Req any](ctx context.Context, deps Deps, kind Kind[Req], req Req, logger *slog.Logger) (Outcome[Response], mapping.Language) {
	host := mapping.LanguageHost

	in := GateInput[Req]{Request: req}
	if g, ok := runGates(kind.Gates, StageRequest, in); !ok {
		logger.Debug("gate rejected request", slog.String("gate", g.Name))
		return NoAnswer[Response](g.Reason), host
	}

	snap := deps.Store.Get(kind.Document(req))
	if snap == nil {
		return NoAnswer[Response](DocumentNotFound), host
	}
	in.Snapshot = snap

	if g, ok := runGates(kind.Gates, StageDocument, in); !ok {
		logger.Debug("gate rejected document", slog.String("gate", g.Name), slog.Int("version", snap.Version))
		return NoAnswer[Response](g.Reason), host
	}

	proj := mapping.Resolve(snap.Table, snap.OffsetAt(kind.Position(req)), kind.AcceptHost)
	if !proj.Resolved {
		return NoAnswer[Response](Unresolved), proj.Language
	}
	if !slices.Contains(kind.Languages, proj.Language) {
		return NoAnswer[Response](LanguageRejected), proj.Language
	}
	in.Projection = proj

	if g, ok := runGates(kind.Gates, StageProjection, in); !ok {
		logger.Debug("gate rejected projection", slog.String("gate", g.Name), slog.String("language", proj.Language.String()))
		return NoAnswer[Response](g.Reason), proj.Language
	}

	gen, ok := snap.GeneratedFor(proj.Language)
	if !ok {
		return NoAnswer[Response](Unresolved), proj.Language
	}
	pos := protocol.OffsetToPosition(gen.Text, proj.Offset)
	payload := kind.Payload(req, gen, pos)

	if err := ctx.Err(); err != nil {
		return Failed[Response](fmt.Errorf("%w: %w", ErrCancelled, err)), proj.Language
	}

	start := time.Now()
	raw, err := deps.Dispatcher.Dispatch(ctx, proj.Language, kind.Method, payload)
	recordDispatch(kind.Method, proj.Language.String(), time.Since(start))
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Failed[Response](fmt.Errorf("%w: %w", ErrCancelled, err)), proj.Language
		}
		return Failed[Response](fmt.Errorf("%w: %w", ErrBackend, err)), proj.Language
	}
	if err := ctx.Err(); err != nil {
		return Failed[Response](fmt.Errorf("%w: %w", ErrCancelled, err)), proj.Language
	}

	resp := kind.Decode(raw)
	remapped, ok := deps.Remapper.Remap(snap, proj.Language, resp)
	if !ok {
		droppedResults.WithLabelValues(kind.Method).Add(float64(resp.Len()))
		return NoAnswer[Response](RemapFailed), proj.Language
	}
	if dropped := resp.Len() - remapped.Len(); dropped > 0 {
		droppedResults.WithLabelValues(kind.Method).Add(float64(dropped))
	}
	return Answer(remapped), proj.Language
}
