package document

import (
	"sort"
	"sync"
)

// Store tracks the current snapshot of every open authored document.
//
// The store only swaps pointers: a request that already holds a snapshot
// keeps using it after a newer version is stored.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]*Snapshot
	generated map[string]string // generated URI -> authored URI
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{
		docs:      make(map[string]*Snapshot),
		generated: make(map[string]string),
	}
}

// Put stores snap as the current version of its document. Older versions
// never replace newer ones. It returns the snapshot that is current after
// the call.
func (s *Store) Put(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.docs[snap.URI]; ok {
		if cur.Version > snap.Version {
			return cur
		}
		for _, g := range cur.Generated {
			delete(s.generated, g.URI)
		}
	}

	s.docs[snap.URI] = snap
	for _, g := range snap.Generated {
		s.generated[g.URI] = snap.URI
	}
	return snap
}

// Get retrieves the current snapshot by authored URI.
func (s *Store) Get(uri string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// GetByGeneratedURI retrieves the current snapshot whose generated document
// has the given URI.
func (s *Store) GetByGeneratedURI(uri string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authored, ok := s.generated[uri]
	if !ok {
		return nil
	}
	return s.docs[authored]
}

// Remove forgets a document and returns its last snapshot.
func (s *Store) Remove(uri string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.docs[uri]
	if !ok {
		return nil
	}
	for _, g := range snap.Generated {
		delete(s.generated, g.URI)
	}
	delete(s.docs, uri)
	return snap
}

// All returns the current snapshots ordered by URI.
func (s *Store) All() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Snapshot, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}
