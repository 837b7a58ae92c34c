// Package router implements the client-facing front-end of spec §4.4: a
// stateless process that re-reads the current LeaderPointer from the Peer
// Registry on every request and forwards mutations and queries there. It
// holds no state of its own across requests, so a leader failover is
// transparent to the next request it receives.
package router
