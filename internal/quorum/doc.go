// Package quorum provides the majority policy and the fan-out coordinators
// for the two protocol phases. Gather drives a prepare/read phase and
// Commit drives an accept/write phase; both fan out to replicas in
// parallel and return as soon as a majority has answered favorably.
package quorum
