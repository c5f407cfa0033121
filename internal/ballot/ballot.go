package ballot

import (
	"bytes"
	"fmt"
)

// Ballot is a totally ordered proposal number. Round is a per-proposer
// monotonic counter; ProposerID breaks ties between proposers that pick
// the same round. The zero Ballot orders below every valid ballot.
type Ballot struct {
	Round      uint64
	ProposerID string
}

// Next returns the next ballot for the given proposer, strictly greater
// than b and than any ballot the proposer has produced at or below b.Round.
func (b Ballot) Next(proposerID string) Ballot {
	return Ballot{Round: b.Round + 1, ProposerID: proposerID}
}

// Compare returns -1, 0 or 1 as b orders before, equal to, or after other.
// Rounds are compared first; proposer IDs break ties.
func (b Ballot) Compare(other Ballot) int {
	if b.Round < other.Round {
		return -1
	}
	if b.Round > other.Round {
		return 1
	}
	switch {
	case b.ProposerID < other.ProposerID:
		return -1
	case b.ProposerID > other.ProposerID:
		return 1
	}
	return 0
}

// Less reports whether b orders strictly before other.
func (b Ballot) Less(other Ballot) bool {
	return b.Compare(other) < 0
}

// Greater reports whether b orders strictly after other.
func (b Ballot) Greater(other Ballot) bool {
	return b.Compare(other) > 0
}

// Equal reports whether b and other are the same ballot.
func (b Ballot) Equal(other Ballot) bool {
	return b.Compare(other) == 0
}

// IsZero reports whether b is the zero ballot, which orders below all
// ballots produced by any proposer.
func (b Ballot) IsZero() bool {
	return b.Round == 0 && b.ProposerID == ""
}

// String returns a compact representation for logging.
func (b Ballot) String() string {
	if b.IsZero() {
		return "(-)"
	}
	return fmt.Sprintf("(%d,%s)", b.Round, b.ProposerID)
}

// Proposal pairs a ballot with an opaque value payload. Proposals are
// immutable once constructed; a proposer replaces an in-flight proposal
// rather than mutating one already sent.
type Proposal struct {
	N     Ballot
	Value []byte
}

// NewProposal constructs a proposal, copying the value so later caller
// mutations cannot leak into a proposal already handed out.
func NewProposal(n Ballot, value []byte) Proposal {
	return Proposal{N: n, Value: append([]byte(nil), value...)}
}

// Equal reports whether two proposals carry the same ballot and value.
func (p Proposal) Equal(other Proposal) bool {
	return p.N.Equal(other.N) && bytes.Equal(p.Value, other.Value)
}

// String returns a compact representation for logging.
func (p Proposal) String() string {
	return fmt.Sprintf("%s=%q", p.N, p.Value)
}
