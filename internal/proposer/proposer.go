package proposer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/quorum"
)

var (
	// ErrQuorumUnreachable means fewer than a majority of acceptors
	// answered a phase favorably. Recoverable: retry with a higher ballot.
	ErrQuorumUnreachable = errors.New("quorum unreachable")
	// ErrSuperseded means acceptors rejected the round because they had
	// promised a higher ballot. Signals contention, not a bug; retry.
	ErrSuperseded = errors.New("superseded by a higher ballot")
)

// AcceptorClient is the transport seam to a single acceptor. Remote
// implementations map these to request/response calls with timeouts;
// a lost response surfaces as an error.
type AcceptorClient interface {
	Prepare(ctx context.Context, b ballot.Ballot) (granted bool, prior *ballot.Proposal, err error)
	Accept(ctx context.Context, p ballot.Proposal) (acked bool, err error)
}

// Proposer drives proposals against a fixed set of acceptors. The round
// counter is monotonic for the proposer's lifetime; a ballot, once used,
// is never reused even across failed rounds.
type Proposer struct {
	id      string
	clients map[string]AcceptorClient
	order   []string

	mu    sync.Mutex
	round uint64
}

// New creates a proposer for the given acceptor clients, keyed by
// acceptor ID. The cluster size N is len(clients) and must not change
// for the proposer's lifetime.
func New(id string, clients map[string]AcceptorClient) *Proposer {
	order := make([]string, 0, len(clients))
	for nodeID := range clients {
		order = append(order, nodeID)
	}
	return &Proposer{id: id, clients: clients, order: order}
}

// nextBallot returns a fresh ballot strictly greater than any this
// proposer has used before.
func (p *Proposer) nextBallot() ballot.Ballot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.round++
	return ballot.Ballot{Round: p.round, ProposerID: p.id}
}

// Bump raises the proposer's round counter to at least observed.Round, so
// the next ballot outbids a competitor seen via a rejection.
func (p *Proposer) Bump(observed ballot.Ballot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if observed.Round > p.round {
		p.round = observed.Round
	}
}

// Propose drives value to a decision, retrying failed rounds with fresh
// higher ballots under exponential backoff until ctx is done. On success
// it returns the chosen value, which is the caller's value unless a
// competing proposal had already been partially accepted.
func (p *Proposer) Propose(ctx context.Context, value []byte) ([]byte, error) {
	var chosen []byte

	op := func() error {
		v, err := p.ProposeOnce(ctx, value)
		if err != nil {
			if errors.Is(err, ErrQuorumUnreachable) || errors.Is(err, ErrSuperseded) {
				return err
			}
			return backoff.Permanent(err)
		}
		chosen = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("propose %q: %w", value, err)
	}
	return chosen, nil
}

// ProposeOnce runs a single round: one fresh ballot, phase 1, phase 2.
// It returns ErrQuorumUnreachable or ErrSuperseded when the round fails
// recoverably; callers retry with backoff (contention with another
// proposer is the likely cause).
func (p *Proposer) ProposeOnce(ctx context.Context, value []byte) ([]byte, error) {
	r := p.newRound(value)
	if err := r.phase1(ctx); err != nil {
		return nil, err
	}
	if err := r.phase2(ctx); err != nil {
		return nil, err
	}
	return r.candidate, nil
}

type roundState int

const (
	roundIdle roundState = iota
	roundPhase1Inflight
	roundPhase1Failed
	roundPhase1Quorum
	roundPhase2Inflight
	roundComplete
)

// round is one attempt at driving a proposal through both phases. A
// failed round is simply abandoned: its ballot and candidate value are
// never reused, and no acceptor state is rolled back.
type round struct {
	proposer  *Proposer
	n         ballot.Ballot
	candidate []byte
	granted   []string
	state     roundState
}

func (p *Proposer) newRound(value []byte) *round {
	return &round{
		proposer:  p,
		n:         p.nextBallot(),
		candidate: value,
		state:     roundIdle,
	}
}

// phase1 fans a prepare out to every acceptor. On achieving a majority
// of grants it resolves the candidate value: any previously accepted
// proposal reported by a granting acceptor overrides the caller's value
// iff its ballot exceeds that of the candidate adopted so far.
func (r *round) phase1(ctx context.Context) error {
	p := r.proposer
	r.state = roundPhase1Inflight

	result := quorum.Gather(ctx, p.order, quorum.Size(len(p.order)), func(ctx context.Context, nodeID string) (bool, *ballot.Proposal, error) {
		return p.clients[nodeID].Prepare(ctx, r.n)
	})

	if !result.Success {
		r.state = roundPhase1Failed
		if result.Rejected > 0 {
			return fmt.Errorf("round %v phase 1: %s: %w", r.n, result.ErrorMessage, ErrSuperseded)
		}
		return fmt.Errorf("round %v phase 1: %s: %w", r.n, result.ErrorMessage, ErrQuorumUnreachable)
	}

	adopted := ballot.Ballot{}
	for _, g := range result.Grants {
		r.granted = append(r.granted, g.NodeID)
		if g.Prior != nil && g.Prior.N.Greater(adopted) {
			adopted = g.Prior.N
			r.candidate = g.Prior.Value
		}
	}
	if !adopted.IsZero() {
		log.Printf("[%s] round %v adopts value from prior proposal %v", p.id, r.n, adopted)
	}
	r.state = roundPhase1Quorum
	return nil
}

// phase2 commits the resolved candidate to the acceptors that granted in
// phase 1. Only that set was promised this ballot, so contacting it is
// both necessary and sufficient. The round counts accept-acks and is
// complete only once acks reach a majority of the full cluster: a
// superseded acceptor drops the accept silently, so missing acks are the
// sole signal that the round lost.
func (r *round) phase2(ctx context.Context) error {
	if r.state != roundPhase1Quorum {
		// Reaching phase 2 without a phase-1 quorum is a logic error in
		// the caller, not a runtime condition.
		panic(fmt.Sprintf("proposer: phase 2 without phase 1 quorum (round %v, state %d)", r.n, r.state))
	}
	p := r.proposer
	r.state = roundPhase2Inflight
	proposal := ballot.NewProposal(r.n, r.candidate)

	result := quorum.Commit(ctx, r.granted, quorum.Size(len(p.order)), func(ctx context.Context, nodeID string) (bool, error) {
		return p.clients[nodeID].Accept(ctx, proposal)
	})

	if !result.Success {
		return fmt.Errorf("round %v phase 2: %s: %w", r.n, result.ErrorMessage, ErrSuperseded)
	}
	r.state = roundComplete
	log.Printf("[%s] round %v complete: %s", p.id, r.n, proposal)
	return nil
}
