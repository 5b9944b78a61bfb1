package foreign

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// stopTimeout bounds stopping a server that failed to initialize.
const stopTimeout = 5 * time.Second

// Pool holds one language server per embedded language.
type Pool struct {
	servers map[mapping.Language]*Server
}

// NewPool creates a pool from already running servers.
func NewPool(servers ...*Server) *Pool {
	p := &Pool{servers: make(map[mapping.Language]*Server, len(servers))}
	for _, s := range servers {
		p.servers[s.Language()] = s
	}
	return p
}

// StartPool launches and initializes every configured language server
// concurrently. Servers start independently: the pool holds every server
// that came up, and the error joins the failures of the others. The pool is
// never nil.
func StartPool(ctx context.Context, rootURI string, specs []Spec) (*Pool, error) {
	return startPool(ctx, rootURI, specs, Start)
}

func startPool(ctx context.Context, rootURI string, specs []Spec, launch func(context.Context, Spec) (*Server, error)) (*Pool, error) {
	servers := make([]*Server, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Go(func() {
			s, err := launch(ctx, spec)
			if err != nil {
				errs[i] = err
				return
			}
			if err := s.Initialize(ctx, rootURI); err != nil {
				errs[i] = err
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
				defer cancel()
				if stopErr := s.Shutdown(stopCtx); stopErr != nil {
					log.Foreign("Failed to stop %s language server after startup error: %v", spec.Language, stopErr)
				}
				return
			}
			servers[i] = s
		})
	}
	wg.Wait()

	var started []*Server
	for i, s := range servers {
		if s != nil {
			started = append(started, s)
			continue
		}
		log.Error("foreign", "%s language server unavailable: %v", specs[i].Language, errs[i])
	}
	return NewPool(started...), errors.Join(errs...)
}

// Get returns the server for lang.
func (p *Pool) Get(lang mapping.Language) (*Server, bool) {
	s, ok := p.servers[lang]
	return s, ok
}

// Servers returns every server in language order.
func (p *Pool) Servers() []*Server {
	servers := make([]*Server, 0, len(p.servers))
	for _, s := range p.servers {
		servers = append(servers, s)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Language() < servers[j].Language() })
	return servers
}

// SyncSnapshot sends each generated document of snap to the server that
// owns its language. Languages without a server are skipped.
func (p *Pool) SyncSnapshot(snap *document.Snapshot) error {
	var errs []error
	for lang, doc := range snap.Generated {
		s, ok := p.servers[lang]
		if !ok {
			continue
		}
		if err := s.Sync(doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseSnapshot closes the generated documents of snap on their servers.
func (p *Pool) CloseSnapshot(snap *document.Snapshot) error {
	var errs []error
	for lang, doc := range snap.Generated {
		s, ok := p.servers[lang]
		if !ok {
			continue
		}
		if err := s.CloseDocument(doc.URI); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops every server concurrently.
func (p *Pool) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range p.servers {
		g.Go(func() error {
			return s.Shutdown(ctx)
		})
	}
	return g.Wait()
}
