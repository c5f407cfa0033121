// Package storage persists responder state across restarts. The protocol
// requires an acceptor's promised floor and highest accepted proposal to
// survive a crash; this package defines that seam and provides an
// in-memory implementation for single-process runs and tests.
package storage
