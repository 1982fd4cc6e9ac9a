// Package store provides read-only access to the orchestration platform's
// network records.
//
// Every accessor returns an immutable snapshot. Nothing in this module writes
// back to the platform database. Two implementations exist: Postgres, which
// queries the platform's networks, vm_instance and nics tables, and Memory,
// which holds snapshots in process for tests and local runs.
package store
