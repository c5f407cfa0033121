package proposer_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorin/paxos-fizzbee/internal/acceptor"
	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/learner"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
	"github.com/lorin/paxos-fizzbee/internal/quorum"
	"github.com/lorin/paxos-fizzbee/internal/storage"
	"github.com/lorin/paxos-fizzbee/internal/transport/inmem"
)

// cluster is an in-process consensus group for scenario tests.
type cluster struct {
	acceptors []*acceptor.Acceptor
	conns     map[string]*inmem.AcceptorConn
	learners  []*learner.Learner
}

func newCluster(t *testing.T, nAcceptors, nLearners int) *cluster {
	t.Helper()
	c := &cluster{conns: make(map[string]*inmem.AcceptorConn)}

	for i := 0; i < nLearners; i++ {
		c.learners = append(c.learners, learner.New(fmt.Sprintf("l%d", i+1), nAcceptors))
	}
	notify := func(responderID string, p ballot.Proposal) {
		for _, l := range c.learners {
			l.Observe(responderID, p)
		}
	}

	for i := 0; i < nAcceptors; i++ {
		id := fmt.Sprintf("a%d", i+1)
		a, err := acceptor.New(id, storage.NewInMemoryStore(), notify)
		require.NoError(t, err)
		c.acceptors = append(c.acceptors, a)
		c.conns[id] = inmem.NewAcceptorConn(a)
	}
	return c
}

func (c *cluster) clients() map[string]proposer.AcceptorClient {
	m := make(map[string]proposer.AcceptorClient, len(c.conns))
	for id, conn := range c.conns {
		m[id] = conn
	}
	return m
}

// quorumAccepted reconstructs the verification-only "chosen values"
// aggregate by polling every acceptor's state, the way an external
// checker would. A value is quorum-accepted when a majority of acceptors
// hold it as their highest accepted proposal.
func (c *cluster) quorumAccepted() map[string]int {
	counts := map[string]int{}
	byProposal := map[string]int{}
	for _, a := range c.acceptors {
		snap := a.Snapshot()
		if snap.Accepted != nil {
			byProposal[snap.Accepted.N.String()+"="+string(snap.Accepted.Value)]++
		}
	}
	for key, n := range byProposal {
		if quorum.Met(n, len(c.acceptors)) {
			counts[key] = n
		}
	}
	return counts
}

// A lone proposer over a healthy cluster completes in a single round.
func TestPropose_SingleProposerSingleRound(t *testing.T) {
	c := newCluster(t, 3, 1)
	p := proposer.New("p1", c.clients())

	chosen, err := p.ProposeOnce(context.Background(), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(chosen))

	v, ok := c.learners[0].ChosenValue()
	require.True(t, ok, "learner should observe the decision")
	assert.Equal(t, "v", string(v))
}

// Single acceptor, two competing proposers: whoever commits first wins,
// and the loser's retry must pick up the winner's value.
func TestPropose_SecondProposerCarriesFirstValue(t *testing.T) {
	c := newCluster(t, 1, 1)

	pa := proposer.New("pa", c.clients())
	pb := proposer.New("pb", c.clients())

	ctx := context.Background()

	chosen, err := pa.ProposeOnce(ctx, []byte("A"))
	require.NoError(t, err)
	require.Equal(t, "A", string(chosen))

	// B proposes B, but must adopt A's already-accepted value.
	chosen, err = pb.Propose(ctx, []byte("B"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(chosen), "B must not introduce its value after A was accepted")

	v, ok := c.learners[0].ChosenValue()
	require.True(t, ok)
	assert.Equal(t, "A", string(v))
}

func TestPropose_QuorumUnreachable(t *testing.T) {
	c := newCluster(t, 3, 0)
	c.conns["a2"].SetDown(true)
	c.conns["a3"].SetDown(true)

	p := proposer.New("p1", c.clients())
	_, err := p.ProposeOnce(context.Background(), []byte("v"))
	require.ErrorIs(t, err, proposer.ErrQuorumUnreachable)

	// The lone reachable acceptor holds a promise but nothing was
	// accepted anywhere.
	assert.Empty(t, c.quorumAccepted())
}

func TestPropose_RecoversWhenNodeReturns(t *testing.T) {
	c := newCluster(t, 3, 1)
	c.conns["a2"].SetDown(true)
	c.conns["a3"].SetDown(true)

	p := proposer.New("p1", c.clients())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		time.Sleep(200 * time.Millisecond)
		c.conns["a2"].SetDown(false)
	}()

	chosen, err := p.Propose(ctx, []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(chosen))
}

// Agreement under contention: concurrent proposers with distinct values
// all converge on a single decided value, and that value is one of the
// originally proposed ones.
func TestPropose_ConcurrentProposersAgree(t *testing.T) {
	c := newCluster(t, 5, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const nProposers = 4
	results := make([][]byte, nProposers)
	errs := make([]error, nProposers)
	var wg sync.WaitGroup
	for i := 0; i < nProposers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := proposer.New(fmt.Sprintf("p%d", i+1), c.clients())
			results[i], errs[i] = p.Propose(ctx, []byte(fmt.Sprintf("value-%d", i+1)))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "proposer %d failed", i+1)
	}

	// Every proposer reports the same chosen value.
	for i := 1; i < nProposers; i++ {
		assert.Equal(t, string(results[0]), string(results[i]),
			"proposers disagree on the chosen value")
	}

	// Validity: the chosen value was actually proposed by someone.
	valid := false
	for i := 0; i < nProposers; i++ {
		if string(results[0]) == fmt.Sprintf("value-%d", i+1) {
			valid = true
		}
	}
	assert.True(t, valid, "chosen value %q was never proposed", results[0])

	// At most one value is ever quorum-accepted across the cluster.
	accepted := c.quorumAccepted()
	assert.LessOrEqual(t, len(accepted), 1, "multiple quorum-accepted proposals: %v", accepted)

	// Both learners agree with the proposers.
	for _, l := range c.learners {
		v, ok := l.ChosenValue()
		require.True(t, ok)
		assert.Equal(t, string(results[0]), string(v))
	}
}
