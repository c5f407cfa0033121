package register

import (
	"context"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
)

// Client is the transport seam to a single storage node.
type Client interface {
	ReadAndAdvance(ctx context.Context, b ballot.Ballot) (exact bool, latest *ballot.Proposal, err error)
	Write(ctx context.Context, w ballot.Proposal) (acked bool, err error)
}

// Writer drives register writes through the two-phase protocol. It is
// the proposer role over storage-node clients: phase 1 gathers exact
// clock grants from a majority (adopting the highest-timestamp prior
// write it learns of), phase 2 commits to the granting set.
type Writer struct {
	p *proposer.Proposer
}

// NewWriter creates a writer for the given storage-node clients, keyed
// by node ID.
func NewWriter(id string, clients map[string]Client) *Writer {
	adapted := make(map[string]proposer.AcceptorClient, len(clients))
	for nodeID, c := range clients {
		adapted[nodeID] = storageClient{c}
	}
	return &Writer{p: proposer.New(id, adapted)}
}

// Write drives value to quorum acceptance, retrying with fresh higher
// timestamps under backoff until ctx is done. The returned value is what
// the register now holds, which is an earlier write's value when that
// write had already been partially applied.
func (w *Writer) Write(ctx context.Context, value []byte) ([]byte, error) {
	return w.p.Propose(ctx, value)
}

// WriteOnce runs a single round without retrying. Failed rounds return
// proposer.ErrQuorumUnreachable or proposer.ErrSuperseded.
func (w *Writer) WriteOnce(ctx context.Context, value []byte) ([]byte, error) {
	return w.p.ProposeOnce(ctx, value)
}

// storageClient adapts a storage-node client to the proposer's acceptor
// seam. A non-exact clock grant is treated as fully rejected: the node
// does not count toward quorum and its returned prior write is not
// adopted.
type storageClient struct {
	c Client
}

func (s storageClient) Prepare(ctx context.Context, b ballot.Ballot) (bool, *ballot.Proposal, error) {
	exact, latest, err := s.c.ReadAndAdvance(ctx, b)
	if err != nil {
		return false, nil, err
	}
	if !exact {
		return false, nil, nil
	}
	return true, latest, nil
}

func (s storageClient) Accept(ctx context.Context, p ballot.Proposal) (bool, error) {
	return s.c.Write(ctx, p)
}
