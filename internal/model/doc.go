// Package model holds the typed model objects that mirror platform network
// entities toward the SDN controller.
//
// Every entity (virtual network, virtual machine, interface, instance IP) is
// an [Object] stored in a [Graph]. Dependency edges are added with
// [Graph.AddTo] before the typed Build call derives the desired controller
// object from a local snapshot. Update pushes the desired object and Delete
// removes it, both through the [Controller] execution context.
//
// Lifecycle:
//
//	New --Build--> Built --Update--> Active --MarkStale--> Stale --Delete--> Deleted
//
// A failed Update leaves the object Built so the next pass retries it.
package model
