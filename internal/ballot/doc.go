// Package ballot defines ballot numbers and proposals, the ordering
// primitives of the consensus protocol. A ballot combines a per-proposer
// round counter with the proposer's identity, so ballots are totally
// ordered and no two proposers ever produce an equal ballot.
package ballot
