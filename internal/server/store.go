package server

import (
	"sync"

	"github.com/carteraops/cartera/internal/pipeline"
)

// Store holds the latest completed pipeline result for the read-only
// API. Reads never block a concurrent refresh.
type Store struct {
	mu     sync.RWMutex
	latest *pipeline.Result
}

func NewStore() *Store { return &Store{} }

func (s *Store) Set(res *pipeline.Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
}

// Latest returns the most recent result, or false when no run has
// completed yet.
func (s *Store) Latest() (*pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}
