// Package acceptor implements the promise-granting responder of the
// consensus protocol. An acceptor tracks the highest ballot it has
// promised not to undercut and the highest-ballot proposal it has
// accepted, and answers prepare and accept requests under strict
// monotonicity guards. This is where all of the protocol's safety lives.
package acceptor
