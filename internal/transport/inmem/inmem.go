package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lorin/paxos-fizzbee/internal/acceptor"
	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/register"
)

// ErrUnreachable is returned for calls to a conn marked down, standing
// in for a connection failure or timeout.
var ErrUnreachable = errors.New("node unreachable")

// faults holds the injectable failure state shared by both conn kinds.
type faults struct {
	mu    sync.Mutex
	down  bool
	delay time.Duration
}

// SetDown marks the conn unreachable (or back up). Calls made while
// down fail with ErrUnreachable without touching the node.
func (f *faults) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// SetDelay adds fixed latency to every call, honoring ctx cancellation.
func (f *faults) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *faults) before(ctx context.Context) error {
	f.mu.Lock()
	down, delay := f.down, f.delay
	f.mu.Unlock()

	if down {
		return ErrUnreachable
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// AcceptorConn adapts a local acceptor to the proposer's client seam.
type AcceptorConn struct {
	faults
	a *acceptor.Acceptor
}

// NewAcceptorConn wraps a.
func NewAcceptorConn(a *acceptor.Acceptor) *AcceptorConn {
	return &AcceptorConn{a: a}
}

func (c *AcceptorConn) Prepare(ctx context.Context, b ballot.Ballot) (bool, *ballot.Proposal, error) {
	if err := c.before(ctx); err != nil {
		return false, nil, err
	}
	granted, prior := c.a.Prepare(b)
	return granted, prior, nil
}

func (c *AcceptorConn) Accept(ctx context.Context, p ballot.Proposal) (bool, error) {
	if err := c.before(ctx); err != nil {
		return false, err
	}
	return c.a.Accept(p), nil
}

// StorageConn adapts a local storage node to the writer's client seam.
type StorageConn struct {
	faults
	n *register.StorageNode
}

// NewStorageConn wraps n.
func NewStorageConn(n *register.StorageNode) *StorageConn {
	return &StorageConn{n: n}
}

func (c *StorageConn) ReadAndAdvance(ctx context.Context, b ballot.Ballot) (bool, *ballot.Proposal, error) {
	if err := c.before(ctx); err != nil {
		return false, nil, err
	}
	exact, latest := c.n.ReadAndAdvance(b)
	return exact, latest, nil
}

func (c *StorageConn) Write(ctx context.Context, w ballot.Proposal) (bool, error) {
	if err := c.before(ctx); err != nil {
		return false, err
	}
	return c.n.Write(w), nil
}
