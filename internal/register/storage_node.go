package register

import (
	"log"
	"sync"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/storage"
)

// PublishFunc pushes an applied write to every reader. The subscriber
// list lives behind the function, injected at startup.
type PublishFunc func(nodeID string, w ballot.Proposal)

// StorageNode is the register-variant responder. Its clock is the
// highest timestamp it has granted or stored and is monotone
// non-decreasing; request handling is linearized under one mutex.
type StorageNode struct {
	mu     sync.Mutex
	id     string
	clock  ballot.Ballot
	latest *ballot.Proposal

	store   storage.Store
	publish PublishFunc
}

// NewStorageNode creates a storage node, restoring any state previously
// saved in store. publish may be nil when no readers are attached.
func NewStorageNode(id string, store storage.Store, publish PublishFunc) (*StorageNode, error) {
	n := &StorageNode{id: id, store: store, publish: publish}
	if store != nil {
		state, ok, err := store.Load()
		if err != nil {
			return nil, err
		}
		if ok {
			n.clock = state.Promised
			n.latest = state.Accepted
		}
	}
	return n, nil
}

// ID returns the node's identity, used in fan-out notifications.
func (n *StorageNode) ID() string { return n.id }

// ReadAndAdvance is the register's phase-1 handshake. It advances the
// clock to b when b is ahead of it, and reports exact=true only when the
// clock then equals exactly the requested timestamp, i.e. no other
// writer's request intervened with a higher one. The previously latest
// write is returned regardless of the grant outcome; conservative
// callers ignore it on a non-exact grant.
func (n *StorageNode) ReadAndAdvance(b ballot.Ballot) (exact bool, latest *ballot.Proposal) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if b.Greater(n.clock) {
		prev := n.clock
		n.clock = b
		if err := n.persistLocked(); err != nil {
			n.clock = prev
			log.Printf("[%s] read %v rejected: persist failed: %v", n.id, b, err)
			return false, n.latestCopyLocked()
		}
	}
	return n.clock.Equal(b), n.latestCopyLocked()
}

// Write applies a timestamped write. Writes below the clock are silently
// ignored; the writer detects the lost round from missing acks. Applied
// writes are published to every reader.
func (n *StorageNode) Write(w ballot.Proposal) bool {
	n.mu.Lock()

	if w.N.Less(n.clock) {
		n.mu.Unlock()
		return false
	}

	prevLatest := n.latest
	if n.latest == nil || w.N.Greater(n.latest.N) {
		stored := ballot.NewProposal(w.N, w.Value)
		n.latest = &stored
	}
	if err := n.persistLocked(); err != nil {
		n.latest = prevLatest
		log.Printf("[%s] write %v dropped: persist failed: %v", n.id, w, err)
		n.mu.Unlock()
		return false
	}
	publish := n.publish
	n.mu.Unlock()

	if publish != nil {
		publish(n.id, w)
	}
	return true
}

// Snapshot returns a copy of the node's current state, for test
// harnesses that poll the cluster to verify quorum acceptance.
func (n *StorageNode) Snapshot() storage.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return storage.State{Promised: n.clock, Accepted: n.latestCopyLocked()}
}

func (n *StorageNode) persistLocked() error {
	if n.store == nil {
		return nil
	}
	return n.store.Save(storage.State{Promised: n.clock, Accepted: n.latest})
}

func (n *StorageNode) latestCopyLocked() *ballot.Proposal {
	if n.latest == nil {
		return nil
	}
	w := ballot.NewProposal(n.latest.N, n.latest.Value)
	return &w
}
