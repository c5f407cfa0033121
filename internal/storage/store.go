package storage

import (
	"sync"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
)

// State is the durable portion of a responder: the highest ballot it has
// promised not to undercut and the highest-ballot proposal it has accepted.
type State struct {
	Promised ballot.Ballot
	Accepted *ballot.Proposal
}

// Copy returns a deep copy so callers cannot alias stored state.
func (s State) Copy() State {
	out := State{Promised: s.Promised}
	if s.Accepted != nil {
		p := ballot.NewProposal(s.Accepted.N, s.Accepted.Value)
		out.Accepted = &p
	}
	return out
}

// Store defines the interface for responder state persistence.
type Store interface {
	// Load retrieves the saved state. The second return is false if no
	// state has ever been saved.
	Load() (State, bool, error)
	// Save durably records the state, replacing any previous one.
	Save(State) error
}

// InMemoryStore is an in-memory implementation of Store. It is
// thread-safe but does not survive process restarts.
type InMemoryStore struct {
	mu    sync.Mutex
	state State
	saved bool
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load retrieves the saved state.
func (s *InMemoryStore) Load() (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return State{}, false, nil
	}
	return s.state.Copy(), true, nil
}

// Save records the state.
func (s *InMemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Copy()
	s.saved = true
	return nil
}
