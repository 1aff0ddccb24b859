// Package projectlock serialises work on one project across the sprint
// lifecycle and the board, so a cascade never interleaves with a move.
package projectlock

import "sync"

// Set hands out one mutex per project id. Entries are dropped once no
// goroutine holds or waits on them.
type Set struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty lock set.
func New() *Set {
	return &Set{locks: make(map[int64]*entry)}
}

// Lock blocks until the project's mutex is held and returns its release func.
func (s *Set) Lock(projectID int64) func() {
	s.mu.Lock()
	e, ok := s.locks[projectID]
	if !ok {
		e = &entry{}
		s.locks[projectID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.locks, projectID)
		}
		s.mu.Unlock()
	}
}

// Len reports how many projects are locked or awaited.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
