// Package proposer implements the value-proposing role. A proposer
// drives the two-phase protocol: gather promises from a majority of
// acceptors, then commit a value to the granting set, adopting any
// previously accepted value with a higher ballot along the way. Failed
// rounds are retried with fresh, strictly higher ballots under
// exponential backoff.
package proposer
