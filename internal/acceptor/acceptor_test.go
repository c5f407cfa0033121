package acceptor

import (
	"sync"
	"testing"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/storage"
)

func mkBallot(round uint64, proposer string) ballot.Ballot {
	return ballot.Ballot{Round: round, ProposerID: proposer}
}

func TestAcceptor_PrepareGrantsHigherBallot(t *testing.T) {
	a, err := New("a1", storage.NewInMemoryStore(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	granted, prior := a.Prepare(mkBallot(1, "p1"))
	if !granted {
		t.Error("Expected grant for first prepare")
	}
	if prior != nil {
		t.Errorf("Expected no prior proposal, got %v", prior)
	}
}

func TestAcceptor_PrepareRejectsStaleBallot(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	a.Prepare(mkBallot(5, "p1"))

	granted, _ := a.Prepare(mkBallot(5, "p1"))
	if granted {
		t.Error("Equal ballot must be rejected")
	}
	granted, _ = a.Prepare(mkBallot(3, "p2"))
	if granted {
		t.Error("Lower ballot must be rejected")
	}

	// A rejected prepare must not move the floor.
	if snap := a.Snapshot(); !snap.Promised.Equal(mkBallot(5, "p1")) {
		t.Errorf("Promised floor moved on reject: %v", snap.Promised)
	}
}

func TestAcceptor_PrepareReturnsHighestAccepted(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	a.Prepare(mkBallot(1, "p1"))
	a.Accept(ballot.NewProposal(mkBallot(1, "p1"), []byte("x")))

	granted, prior := a.Prepare(mkBallot(2, "p2"))
	if !granted {
		t.Fatal("Expected grant")
	}
	if prior == nil || string(prior.Value) != "x" {
		t.Errorf("Expected prior proposal x, got %v", prior)
	}
	if !prior.N.Equal(mkBallot(1, "p1")) {
		t.Errorf("Prior ballot = %v, want (1,p1)", prior.N)
	}
}

func TestAcceptor_AcceptBelowFloorIgnored(t *testing.T) {
	notified := 0
	a, _ := New("a1", storage.NewInMemoryStore(), func(string, ballot.Proposal) {
		notified++
	})

	a.Prepare(mkBallot(2, "p2"))

	acked := a.Accept(ballot.NewProposal(mkBallot(1, "p1"), []byte("stale")))
	if acked {
		t.Error("Accept below promised floor must not be acked")
	}
	if notified != 0 {
		t.Error("Ignored accept must not fan out")
	}
	if snap := a.Snapshot(); snap.Accepted != nil {
		t.Errorf("Ignored accept mutated state: %v", snap.Accepted)
	}
}

func TestAcceptor_AcceptFansOut(t *testing.T) {
	var gotID string
	var gotP ballot.Proposal
	a, _ := New("a1", storage.NewInMemoryStore(), func(id string, p ballot.Proposal) {
		gotID, gotP = id, p
	})

	a.Prepare(mkBallot(1, "p1"))
	p := ballot.NewProposal(mkBallot(1, "p1"), []byte("v"))
	if !a.Accept(p) {
		t.Fatal("Expected ack")
	}
	if gotID != "a1" || !gotP.Equal(p) {
		t.Errorf("Fan-out saw (%s, %v), want (a1, %v)", gotID, gotP, p)
	}
}

func TestAcceptor_AcceptKeepsHighestBallot(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	a.Prepare(mkBallot(1, "p1"))
	a.Accept(ballot.NewProposal(mkBallot(1, "p1"), []byte("old")))
	a.Prepare(mkBallot(3, "p2"))
	a.Accept(ballot.NewProposal(mkBallot(3, "p2"), []byte("new")))

	snap := a.Snapshot()
	if snap.Accepted == nil || string(snap.Accepted.Value) != "new" {
		t.Errorf("Expected highest accepted to be new, got %v", snap.Accepted)
	}
}

func TestAcceptor_PromisedFloorMonotone(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	ballots := []ballot.Ballot{
		mkBallot(1, "p1"), mkBallot(5, "p2"), mkBallot(3, "p1"),
		mkBallot(5, "p1"), mkBallot(6, "p1"), mkBallot(2, "p3"),
	}
	floor := ballot.Ballot{}
	for _, b := range ballots {
		a.Prepare(b)
		snap := a.Snapshot()
		if snap.Promised.Less(floor) {
			t.Fatalf("Promised floor decreased: %v -> %v", floor, snap.Promised)
		}
		floor = snap.Promised
	}
}

func TestAcceptor_RestoresStateFromStore(t *testing.T) {
	store := storage.NewInMemoryStore()

	a, _ := New("a1", store, nil)
	a.Prepare(mkBallot(4, "p1"))
	a.Accept(ballot.NewProposal(mkBallot(4, "p1"), []byte("v")))

	// Simulated restart: a fresh acceptor over the same store must keep
	// its promise.
	b, err := New("a1", store, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if granted, _ := b.Prepare(mkBallot(3, "p2")); granted {
		t.Error("Restarted acceptor granted below restored floor")
	}
	granted, prior := b.Prepare(mkBallot(5, "p2"))
	if !granted || prior == nil || string(prior.Value) != "v" {
		t.Errorf("Restarted acceptor lost accepted proposal: granted=%v prior=%v", granted, prior)
	}
}

func TestAcceptor_RecentAcceptsBounded(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	var last ballot.Ballot
	for i := uint64(1); i <= 20; i++ {
		last = mkBallot(i, "p1")
		a.Prepare(last)
		a.Accept(ballot.NewProposal(last, []byte{byte(i)}))
	}

	recent := a.RecentAccepts()
	if len(recent) != recentHistorySize {
		t.Fatalf("Expected %d recent accepts, got %d", recentHistorySize, len(recent))
	}
	if !recent[len(recent)-1].N.Equal(last) {
		t.Errorf("Newest accept missing from history: %v", recent[len(recent)-1].N)
	}
}

func TestAcceptor_ConcurrentRequestsLinearized(t *testing.T) {
	a, _ := New("a1", storage.NewInMemoryStore(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(round uint64) {
			defer wg.Done()
			b := mkBallot(round, "p1")
			if granted, _ := a.Prepare(b); granted {
				a.Accept(ballot.NewProposal(b, []byte("v")))
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	snap := a.Snapshot()
	if snap.Promised.Less(mkBallot(50, "p1")) {
		t.Errorf("Promised floor below highest prepared: %v", snap.Promised)
	}
	if snap.Accepted != nil && snap.Accepted.N.Greater(snap.Promised) {
		t.Errorf("Accepted ballot %v above promised floor %v", snap.Accepted.N, snap.Promised)
	}
}
