// Package trigger receives sync and delete requests over NATS.
//
// Requests are published to subjects of the form
//
//	<prefix>.sync.network    {"id": 42}
//	<prefix>.delete.nic      {"id": 7}
//	<prefix>.fullsync        {}
//
// A Listener joins a queue group so that each request is handled by exactly
// one vnsync replica. The operation runs synchronously in the NATS callback
// and, when the request carries a reply subject, the outcome is sent back as
// a Reply.
package trigger
