// Package rpc exposes a Node over HTTP: the peer-to-peer consensus routes
// (vote, heartbeat, replicate, status, state, logs) and the client-facing
// workflow API (printers, filaments, jobs). It calls consensus.Node's
// request-handling methods; Node itself never imports this package (spec
// §9's one-way dependency note).
package rpc
