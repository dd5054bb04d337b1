// Package app provides InmemApp, an in-memory implementation of the services
// that connections call into: ledger stores answering requests, a transaction
// pool, a consensus inbox, the quorum-set cache and the peer directory.
//
// It stands in for the ledger and consensus components of a full node, which
// live outside this module.
package app
