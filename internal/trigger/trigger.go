package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imamik/vnsync/internal/reconcile"
)

// Actions.
const (
	ActionSync     = "sync"
	ActionDelete   = "delete"
	ActionFullSync = "fullsync"
)

// Entity kinds addressed by sync and delete subjects.
const (
	EntityNetwork = "network"
	EntityVM      = "vm"
	EntityNic     = "nic"
)

// Entities lists the entity kinds in subscription order.
var Entities = []string{EntityNetwork, EntityVM, EntityNic}

// Request is the payload of a sync or delete message.
type Request struct {
	ID int64 `json:"id"`
}

// Reply is the response to a request.
type Reply struct {
	OK      bool           `json:"ok" yaml:"ok"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
	Summary map[string]int `json:"summary,omitempty" yaml:"summary,omitempty"`
	Orphans int            `json:"orphans,omitempty" yaml:"orphans,omitempty"`
}

// Orchestrator runs event-triggered operations.
type Orchestrator interface {
	SyncNetwork(ctx context.Context, id int64) (*reconcile.Report, error)
	SyncVM(ctx context.Context, id int64) (*reconcile.Report, error)
	SyncNic(ctx context.Context, id int64) (*reconcile.Report, error)
	DeleteNetwork(ctx context.Context, id int64) (*reconcile.Report, error)
	DeleteVM(ctx context.Context, id int64) (*reconcile.Report, error)
	DeleteNic(ctx context.Context, id int64) (*reconcile.Report, error)
}

// FullSyncer runs one full-sync pass.
type FullSyncer interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

// Subject returns the subject for action on entity. entity is ignored for
// ActionFullSync.
func Subject(prefix, action, entity string) string {
	if action == ActionFullSync {
		return prefix + "." + ActionFullSync
	}
	return prefix + "." + action + "." + entity
}

// Subjects returns every subject a listener with prefix subscribes to.
func Subjects(prefix string) []string {
	var out []string
	for _, action := range []string{ActionSync, ActionDelete} {
		for _, entity := range Entities {
			out = append(out, Subject(prefix, action, entity))
		}
	}
	return append(out, Subject(prefix, ActionFullSync, ""))
}

// Dispatcher maps subjects to operations.
type Dispatcher struct {
	Prefix string
	Orch   Orchestrator
	Full   FullSyncer
}

// Dispatch runs the operation named by subject and builds its reply.
func (d *Dispatcher) Dispatch(ctx context.Context, subject string, data []byte) Reply {
	report, err := d.dispatch(ctx, subject, data)
	reply := Reply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	}
	if report != nil {
		reply.Summary = report.Summary()
		reply.Orphans = report.Orphans
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, subject string, data []byte) (*reconcile.Report, error) {
	rest, ok := strings.CutPrefix(subject, d.Prefix+".")
	if !ok {
		return nil, fmt.Errorf("subject %q outside prefix %q", subject, d.Prefix)
	}
	if rest == ActionFullSync {
		if d.Full == nil {
			return nil, fmt.Errorf("full sync not available")
		}
		return d.Full.Run(ctx)
	}

	action, entity, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, fmt.Errorf("malformed subject %q", subject)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.ID <= 0 {
		return nil, fmt.Errorf("request id must be positive, got %d", req.ID)
	}

	op, err := d.Operation(action, entity)
	if err != nil {
		return nil, err
	}
	return op(ctx, req.ID)
}

// Operation returns the orchestrator method for action on entity.
func (d *Dispatcher) Operation(action, entity string) (func(context.Context, int64) (*reconcile.Report, error), error) {
	switch action + "." + entity {
	case ActionSync + "." + EntityNetwork:
		return d.Orch.SyncNetwork, nil
	case ActionSync + "." + EntityVM:
		return d.Orch.SyncVM, nil
	case ActionSync + "." + EntityNic:
		return d.Orch.SyncNic, nil
	case ActionDelete + "." + EntityNetwork:
		return d.Orch.DeleteNetwork, nil
	case ActionDelete + "." + EntityVM:
		return d.Orch.DeleteVM, nil
	case ActionDelete + "." + EntityNic:
		return d.Orch.DeleteNic, nil
	default:
		return nil, fmt.Errorf("unknown operation %s %s", action, entity)
	}
}
