// Package register builds a replicated read/write register from the same
// quorum-intersection machinery as the consensus roles. A storage node is
// an acceptor whose promised floor doubles as a logical clock: a read
// request is granted only when the clock lands exactly on the requested
// timestamp, meaning no other writer intervened. Writers drive the
// two-phase protocol over storage nodes and readers tally write
// notifications exactly as learners do.
package register
