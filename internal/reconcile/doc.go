// Package reconcile drives model objects toward the controller.
//
// [Orchestrator] serves event-triggered syncs and deletes for one network,
// VM or NIC at a time. [FullSync] re-derives the whole expected graph, pushes
// it and deletes controller objects that no local entity accounts for. Both
// build graphs the same way and serialize per entity through a shared
// [Locker].
package reconcile
