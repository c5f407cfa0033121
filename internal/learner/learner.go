package learner

import (
	"log"
	"sync"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/quorum"
)

type proposalKey struct {
	n     ballot.Ballot
	value string
}

type notificationKey struct {
	responderID string
	proposal    proposalKey
}

// Learner tallies fan-out notifications and exposes the chosen value.
// The chosen value is write-once: once a majority of acceptors has
// reported the same proposal, no later notification can change it.
type Learner struct {
	mu          sync.Mutex
	id          string
	clusterSize int

	tally  map[proposalKey]int
	seen   map[notificationKey]struct{}
	chosen []byte
	// decided distinguishes a chosen empty value from no decision.
	decided bool
}

// New creates a learner for a cluster of clusterSize acceptors.
func New(id string, clusterSize int) *Learner {
	return &Learner{
		id:          id,
		clusterSize: clusterSize,
		tally:       make(map[proposalKey]int),
		seen:        make(map[notificationKey]struct{}),
	}
}

// Observe processes one fan-out notification. Duplicate notifications for
// the same (responder, proposal) pair are ignored, so retransmissions
// never inflate a tally.
func (l *Learner) Observe(responderID string, p ballot.Proposal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.decided {
		return
	}

	pk := proposalKey{n: p.N, value: string(p.Value)}
	nk := notificationKey{responderID: responderID, proposal: pk}
	if _, dup := l.seen[nk]; dup {
		return
	}
	l.seen[nk] = struct{}{}
	l.tally[pk]++

	if quorum.Met(l.tally[pk], l.clusterSize) {
		l.chosen = append([]byte(nil), p.Value...)
		l.decided = true
		// Tallies only exist to detect the decision; drop them rather
		// than accumulate every proposal ever notified.
		l.tally = nil
		l.seen = nil
		log.Printf("[%s] chose %s", l.id, p)
	}
}

// ChosenValue returns the decided value, if any. The second return is
// false while the learner is still undecided, a valid terminal state when
// no proposal ever reaches quorum acceptance.
func (l *Learner) ChosenValue() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.decided {
		return nil, false
	}
	return append([]byte(nil), l.chosen...), true
}
