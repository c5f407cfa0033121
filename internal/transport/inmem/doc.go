// Package inmem provides in-process transport clients for the acceptor
// and storage-node roles. Conns support fault injection (unreachable
// nodes, added latency) so tests can exercise quorum loss, contention
// and message delay without a network.
package inmem
