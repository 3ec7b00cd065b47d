// Package persistence keeps local runtime state of a Thing that must survive
// restarts but does not belong in the shared store.
//
// The Ledger records every action request the Thing has sent, with the last
// state its monitor observed, so monitors can be resumed after a restart.
// State is saved as a JSON file on every change.
package persistence
