package register

import (
	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/learner"
)

// Reader observes write notifications published by storage nodes and
// reports a value once a majority of nodes has applied the same write.
// It is the learner role under the register vocabulary.
type Reader struct {
	l *learner.Learner
}

// NewReader creates a reader for a cluster of clusterSize storage nodes.
func NewReader(id string, clusterSize int) *Reader {
	return &Reader{l: learner.New(id, clusterSize)}
}

// Publish processes one write notification. Duplicate notifications per
// (node, write) pair are ignored.
func (r *Reader) Publish(nodeID string, w ballot.Proposal) {
	r.l.Observe(nodeID, w)
}

// Value returns the quorum-applied value, if any has been observed.
func (r *Reader) Value() ([]byte, bool) {
	return r.l.ChosenValue()
}
