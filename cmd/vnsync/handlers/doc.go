// Package handlers implements the business logic for vnsync CLI commands.
//
// Each handler loads the configuration, wires the store, the controller
// client and the reconciler, and runs one operation. Construction goes
// through package-level factory variables so tests can substitute
// in-memory backends.
package handlers
