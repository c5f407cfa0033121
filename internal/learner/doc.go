// Package learner implements the passive observer role. A learner never
// initiates requests; it tallies the accept notifications fanned out by
// acceptors and declares a value chosen once a majority of distinct
// acceptors has reported the same proposal.
package learner
