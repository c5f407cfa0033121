package acceptor

import (
	"log"
	"sync"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/storage"
)

// recentHistorySize bounds the ring of recently accepted proposals kept
// for inspection; the authoritative state is the single highest-ballot
// accepted slot.
const recentHistorySize = 8

// NotifyFunc pushes an accepted proposal to every learner. The subscriber
// list lives behind the function; the acceptor never knows learner count
// or identity. Delivery is best effort and may run concurrently with
// later requests.
type NotifyFunc func(responderID string, p ballot.Proposal)

// Acceptor is the promise-granting role. All request handling is
// linearized under one mutex so the promised floor is monotone
// non-decreasing for the acceptor's lifetime.
type Acceptor struct {
	mu       sync.Mutex
	id       string
	promised ballot.Ballot
	accepted *ballot.Proposal

	recent     []ballot.Proposal
	recentNext int

	store  storage.Store
	notify NotifyFunc
}

// New creates an acceptor, restoring any state previously saved in store.
// notify may be nil when no learners are attached.
func New(id string, store storage.Store, notify NotifyFunc) (*Acceptor, error) {
	a := &Acceptor{
		id:     id,
		recent: make([]ballot.Proposal, 0, recentHistorySize),
		store:  store,
		notify: notify,
	}
	if store != nil {
		state, ok, err := store.Load()
		if err != nil {
			return nil, err
		}
		if ok {
			a.promised = state.Promised
			a.accepted = state.Accepted
		}
	}
	return a, nil
}

// ID returns the acceptor's identity, used in fan-out notifications.
func (a *Acceptor) ID() string { return a.id }

// Prepare handles a phase-1 request for ballot b. If b is strictly above
// the promised floor the floor is raised to b and the grant carries the
// highest-ballot proposal previously accepted, if any. Otherwise the
// request is rejected and no state changes.
func (a *Acceptor) Prepare(b ballot.Ballot) (bool, *ballot.Proposal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !b.Greater(a.promised) {
		return false, nil
	}

	prev := a.promised
	a.promised = b
	if err := a.persistLocked(); err != nil {
		// Without durability the promise cannot be honored across a
		// crash, so the floor stays put and the request is rejected.
		a.promised = prev
		log.Printf("[%s] prepare %v rejected: persist failed: %v", a.id, b, err)
		return false, nil
	}
	return true, a.acceptedCopyLocked()
}

// Accept handles a phase-2 request. Proposals below the promised floor
// are silently ignored: the proposer has been superseded and must infer
// that from missing acks. Otherwise the proposal is recorded and fanned
// out to the learners; the return value is the ack.
func (a *Acceptor) Accept(p ballot.Proposal) bool {
	a.mu.Lock()

	if p.N.Less(a.promised) {
		a.mu.Unlock()
		return false
	}

	prevAccepted := a.accepted
	if a.accepted == nil || p.N.Greater(a.accepted.N) {
		stored := ballot.NewProposal(p.N, p.Value)
		a.accepted = &stored
	}
	if err := a.persistLocked(); err != nil {
		a.accepted = prevAccepted
		log.Printf("[%s] accept %v dropped: persist failed: %v", a.id, p, err)
		a.mu.Unlock()
		return false
	}
	a.recordRecentLocked(p)
	notify := a.notify
	a.mu.Unlock()

	// Fan-out runs outside the critical section: learners are remote and
	// must not serialize against this acceptor's request handling.
	if notify != nil {
		notify(a.id, p)
	}
	return true
}

// Snapshot returns a copy of the acceptor's current durable state. Test
// harnesses poll snapshots across the cluster to check quorum acceptance;
// nothing in the runtime protocol reads it.
func (a *Acceptor) Snapshot() storage.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return storage.State{Promised: a.promised, Accepted: a.acceptedCopyLocked()}
}

// RecentAccepts returns the bounded history of recently accepted
// proposals, oldest first.
func (a *Acceptor) RecentAccepts() []ballot.Proposal {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ballot.Proposal, 0, len(a.recent))
	if len(a.recent) < recentHistorySize {
		out = append(out, a.recent...)
		return out
	}
	out = append(out, a.recent[a.recentNext:]...)
	out = append(out, a.recent[:a.recentNext]...)
	return out
}

func (a *Acceptor) recordRecentLocked(p ballot.Proposal) {
	if len(a.recent) < recentHistorySize {
		a.recent = append(a.recent, p)
		return
	}
	a.recent[a.recentNext] = p
	a.recentNext = (a.recentNext + 1) % recentHistorySize
}

func (a *Acceptor) persistLocked() error {
	if a.store == nil {
		return nil
	}
	return a.store.Save(storage.State{Promised: a.promised, Accepted: a.accepted})
}

func (a *Acceptor) acceptedCopyLocked() *ballot.Proposal {
	if a.accepted == nil {
		return nil
	}
	p := ballot.NewProposal(a.accepted.N, a.accepted.Value)
	return &p
}
