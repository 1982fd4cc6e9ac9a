// Package contrail provides access to the SDN controller's object API.
//
// # Architecture
//
// The package is organized by concern:
//
//   - client.go: API interface, object kinds and the object shape
//   - errors.go: Error classification (not found, conflict, unavailable, transient)
//   - rest_client.go: JSON-over-HTTP implementation with rate limiting
//   - memory.go: In-process controller with referential integrity, used by tests
//     and by `--controller-url memory://`
//
// # Object Model
//
// Every controller object is addressed by (Kind, UUID). Objects carry a fully
// qualified name, references to other objects and a flat attribute map. Labels
// stamp ownership so that List can scope an inventory to one namespace.
//
// # Error Classification
//
// All calls return errors wrapping one of ErrNotFound, ErrConflict or
// ErrUnavailable inside an *APIError. IsTransient reports whether an error is
// worth retrying on a later pass: conflicts, unavailability and deadlines.
// Callers never retry in a tight loop; the next reconciliation pass does.
//
// # Example Usage
//
//	api := contrail.NewRESTClient("http://controller:8082",
//	    contrail.WithToken(token),
//	    contrail.WithRateLimit(20, 40),
//	)
//	obj, err := api.Get(ctx, contrail.KindVirtualNetwork, uuid)
//	if contrail.IsNotFound(err) {
//	    err = api.Create(ctx, contrail.KindVirtualNetwork, desired)
//	}
package contrail
