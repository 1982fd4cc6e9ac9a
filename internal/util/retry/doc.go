// Package retry provides exponential backoff for start-up connectivity.
//
// [WithExponentialBackoff] is used while the daemon waits for the platform
// database and the controller API to become reachable. Reconciliation calls
// are never retried in-call; the next sync pass retries them.
package retry
