// Package connection keeps a polling loop's store session alive.
//
// Every background loop owns one Session. A Session is a store.Handle that
// connects lazily, counts consecutive transient failures and, once they
// reach a threshold, drops the underlying handle and reconnects with
// exponential backoff:
//
//  1. Initial delay: 500 milliseconds
//  2. Exponential increase: 1s, 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Reset on successful reconnection
//
// While a reconnect is pending, operations fail fast with an error wrapping
// store.ErrNetwork, so the owning loop logs the tick as failed and carries
// on. Loops never block inside the backoff wait.
//
// # Jitter
//
// Many Things reconnecting to the same network spread out as
//
//	actual_delay = base_delay + random(0, base_delay * 0.2)
package connection
