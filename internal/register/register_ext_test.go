package register_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
	"github.com/lorin/paxos-fizzbee/internal/register"
	"github.com/lorin/paxos-fizzbee/internal/storage"
	"github.com/lorin/paxos-fizzbee/internal/transport/inmem"
)

type regCluster struct {
	nodes   []*register.StorageNode
	conns   map[string]*inmem.StorageConn
	readers []*register.Reader
}

func newRegCluster(t *testing.T, nNodes, nReaders int) *regCluster {
	t.Helper()
	c := &regCluster{conns: make(map[string]*inmem.StorageConn)}

	for i := 0; i < nReaders; i++ {
		c.readers = append(c.readers, register.NewReader(fmt.Sprintf("r%d", i+1), nNodes))
	}
	publish := func(nodeID string, w ballot.Proposal) {
		for _, r := range c.readers {
			r.Publish(nodeID, w)
		}
	}

	for i := 0; i < nNodes; i++ {
		id := fmt.Sprintf("s%d", i+1)
		n, err := register.NewStorageNode(id, storage.NewInMemoryStore(), publish)
		require.NoError(t, err)
		c.nodes = append(c.nodes, n)
		c.conns[id] = inmem.NewStorageConn(n)
	}
	return c
}

func (c *regCluster) clients() map[string]register.Client {
	m := make(map[string]register.Client, len(c.conns))
	for id, conn := range c.conns {
		m[id] = conn
	}
	return m
}

// Three storage nodes, quorum of two: a write applied on two nodes is
// enough for a reader to report the value; the third node never hears
// about it and that is irrelevant to the reader's decision.
func TestRegister_WriteVisibleAtQuorum(t *testing.T) {
	c := newRegCluster(t, 3, 1)
	c.conns["s3"].SetDown(true)

	w := register.NewWriter("w1", c.clients())
	written, err := w.WriteOnce(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "x", string(written))

	v, ok := c.readers[0].Value()
	require.True(t, ok, "two matching publications must decide the reader")
	assert.Equal(t, "x", string(v))

	// The partitioned node holds nothing.
	snap := c.nodes[2].Snapshot()
	assert.Nil(t, snap.Accepted)
}

func TestRegister_WriterAdoptsPartialWrite(t *testing.T) {
	c := newRegCluster(t, 3, 1)

	// First writer lands "x" on a quorum.
	w1 := register.NewWriter("w1", c.clients())
	_, err := w1.WriteOnce(context.Background(), []byte("x"))
	require.NoError(t, err)

	// A second writer must carry the applied value forward rather than
	// blindly installing its own.
	w2 := register.NewWriter("w2", c.clients())
	got, err := w2.Write(context.Background(), []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestRegister_WriteFailsWithoutQuorum(t *testing.T) {
	c := newRegCluster(t, 3, 0)
	c.conns["s1"].SetDown(true)
	c.conns["s2"].SetDown(true)

	w := register.NewWriter("w1", c.clients())
	_, err := w.WriteOnce(context.Background(), []byte("x"))
	require.ErrorIs(t, err, proposer.ErrQuorumUnreachable)
}

// Two writers racing for the same timestamp window: the loser's round
// fails on non-exact grants and its retry adopts the winner's value.
func TestRegister_ContendingWritersConverge(t *testing.T) {
	c := newRegCluster(t, 3, 2)

	w1 := register.NewWriter("w1", c.clients())
	w2 := register.NewWriter("w2", c.clients())

	ctx := context.Background()

	first, err := w1.Write(ctx, []byte("first"))
	require.NoError(t, err)
	second, err := w2.Write(ctx, []byte("second"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second),
		"the register must hold a single agreed value")

	for _, r := range c.readers {
		v, ok := r.Value()
		require.True(t, ok)
		assert.Equal(t, string(first), string(v))
	}
}

func TestRegister_DuplicatePublicationsIdempotent(t *testing.T) {
	r := register.NewReader("r1", 3)
	w := ballot.NewProposal(ballot.Ballot{Round: 5, ProposerID: "w1"}, []byte("x"))

	r.Publish("s1", w)
	r.Publish("s1", w)
	if _, ok := r.Value(); ok {
		t.Fatal("Duplicate publications from one node reached quorum")
	}

	r.Publish("s2", w)
	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, "x", string(v))
}
