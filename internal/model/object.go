package model

import (
	"context"
	"fmt"
	"maps"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/vnsync/internal/platform/contrail"
)

// Object is a model object mirroring one local entity toward the controller.
// Every kind has its own typed Build; Update and Delete are shared.
type Object interface {
	UUID() string
	Kind() contrail.Kind
	Name() string
	State() State
	// Desired returns the controller object derived by Build.
	Desired() *contrail.Object
	// Observed returns the last known controller object, nil when absent.
	Observed() *contrail.Object
	// Observe seeds the controller state, nil meaning the object is absent.
	// Update then skips its own GET.
	Observe(obj *contrail.Object)
	MarkStale()
	Update(ctx context.Context, c *Controller) error
	Delete(ctx context.Context, c *Controller) error

	node() *base
}

// base carries the lifecycle and controller bookkeeping shared by all kinds.
type base struct {
	uuid  string
	kind  contrail.Kind
	state State
	graph *Graph

	desired  *contrail.Object
	observed *contrail.Object
	// observedKnown is set once observed reflects the controller.
	observedKnown bool
}

func newBase(kind contrail.Kind, uuid string) base {
	return base{uuid: uuid, kind: kind, state: StateNew}
}

func (b *base) node() *base { return b }

// UUID implements Object.
func (b *base) UUID() string { return b.uuid }

// Kind implements Object.
func (b *base) Kind() contrail.Kind { return b.kind }

// State implements Object.
func (b *base) State() State { return b.state }

// Name implements Object.
func (b *base) Name() string {
	if b.desired != nil {
		return b.desired.QualifiedName()
	}
	if b.observed != nil {
		return b.observed.QualifiedName()
	}
	return ""
}

// Desired implements Object.
func (b *base) Desired() *contrail.Object { return b.desired.DeepCopy() }

// Observed implements Object.
func (b *base) Observed() *contrail.Object { return b.observed.DeepCopy() }

// Observe implements Object.
func (b *base) Observe(obj *contrail.Object) {
	b.observed = obj.DeepCopy()
	b.observedKnown = true
}

// MarkStale implements Object.
func (b *base) MarkStale() {
	if b.state != StateDeleted {
		b.state = StateStale
	}
}

// checkBuild verifies the node is in a graph, still New, and that each
// required parent kind is present exactly once and at least Built.
func (b *base) checkBuild(required ...contrail.Kind) error {
	if b.state != StateNew {
		return fmt.Errorf("%s %s: build in state %s", b.kind, b.uuid, b.state)
	}
	if b.graph == nil {
		return &IncompleteGraphError{Kind: b.kind, UUID: b.uuid, Reason: "not in a graph"}
	}
	for _, kind := range required {
		var found []Object
		for _, p := range b.graph.Parents(b) {
			if p.Kind() == kind {
				found = append(found, p)
			}
		}
		switch {
		case len(found) == 0:
			return &IncompleteGraphError{Kind: b.kind, UUID: b.uuid, Missing: kind, Reason: "missing"}
		case len(found) > 1:
			return &IncompleteGraphError{Kind: b.kind, UUID: b.uuid, Missing: kind, Reason: "ambiguous"}
		case found[0].State() == StateNew:
			return &IncompleteGraphError{Kind: b.kind, UUID: b.uuid, Missing: kind, Reason: "not built"}
		}
	}
	return nil
}

// parent returns the single parent of the given kind, nil without a graph.
func (b *base) parent(kind contrail.Kind) Object {
	if b.graph == nil {
		return nil
	}
	return b.graph.ParentOfKind(b, kind)
}

// built records the desired object and moves New to Built.
func (b *base) built(desired *contrail.Object) {
	desired.UUID = b.uuid
	desired.Kind = b.kind
	contrail.SortRefs(desired.Refs)
	b.desired = desired
	b.state = StateBuilt
}

// Update pushes the desired object to the controller. Every parent must be
// Active first. With nothing changed it issues no write. On failure the
// object is left Built.
func (b *base) Update(ctx context.Context, c *Controller) error {
	switch b.state {
	case StateBuilt, StateActive:
	default:
		return fmt.Errorf("%s %s: update in state %s", b.kind, b.uuid, b.state)
	}

	if b.graph != nil {
		for _, p := range b.graph.Parents(b) {
			if p.State() != StateActive {
				b.state = StateBuilt
				return fmt.Errorf("%s %s: %s %s is %s: %w",
					b.kind, b.uuid, p.Kind(), p.UUID(), p.State(), ErrParentNotActive)
			}
		}
	}

	if !b.observedKnown {
		obs, err := c.Get(ctx, b.kind, b.uuid)
		if err != nil {
			b.state = StateBuilt
			return err
		}
		b.Observe(obs)
	}

	diff := Diff(b.observed, b.desired)
	logger := log.FromContext(ctx).WithValues("kind", b.kind, "uuid", b.uuid)

	var err error
	switch diff.Kind {
	case DiffNone:
	case DiffCreate:
		err = c.call(ctx, func(ctx context.Context) error {
			return c.API.Create(ctx, b.kind, b.desired.DeepCopy())
		})
	case DiffPatch:
		patch := &contrail.Object{UUID: b.uuid, Kind: b.kind, Attrs: diff.Attrs}
		err = c.call(ctx, func(ctx context.Context) error {
			return c.API.Update(ctx, b.kind, b.uuid, patch)
		})
	case DiffReplace:
		err = c.call(ctx, func(ctx context.Context) error {
			return c.API.Update(ctx, b.kind, b.uuid, b.desired.DeepCopy())
		})
	}
	if err != nil {
		b.state = StateBuilt
		// The controller may have changed underneath; fetch again next time.
		b.observedKnown = false
		return err
	}

	if diff.Kind != DiffNone {
		logger.V(1).Info("pushed object", "diff", diff.Kind.String(), "name", b.Name())
		b.applied(diff)
	}
	b.state = StateActive
	return nil
}

// applied folds a successful write into the observed object.
func (b *base) applied(diff DiffResult) {
	if diff.Kind == DiffPatch && b.observed != nil {
		if b.observed.Attrs == nil {
			b.observed.Attrs = make(map[string]string, len(diff.Attrs))
		}
		maps.Copy(b.observed.Attrs, diff.Attrs)
		return
	}
	b.observed = b.desired.DeepCopy()
}

// Delete removes the controller object. It refuses while a live child in the
// graph still depends on the object, leaving it Stale. A missing controller
// object counts as deleted.
func (b *base) Delete(ctx context.Context, c *Controller) error {
	if b.state == StateDeleted {
		return nil
	}
	if b.state != StateStale {
		return fmt.Errorf("%s %s: delete in state %s", b.kind, b.uuid, b.state)
	}

	if b.graph != nil {
		var live []string
		for _, child := range b.graph.Children(b) {
			if child.State().Live() {
				live = append(live, fmt.Sprintf("%s %s", child.Kind(), child.UUID()))
			}
		}
		if len(live) > 0 {
			return &DependencyInUseError{Kind: b.kind, UUID: b.uuid, Dependents: live}
		}
	}

	err := c.call(ctx, func(ctx context.Context) error {
		return c.API.Delete(ctx, b.kind, b.uuid)
	})
	switch {
	case err == nil, contrail.IsNotFound(err):
	case contrail.IsConflict(err):
		return &DependencyInUseError{Kind: b.kind, UUID: b.uuid, Err: err}
	default:
		return err
	}

	log.FromContext(ctx).V(1).Info("deleted object", "kind", b.kind, "uuid", b.uuid)
	b.state = StateDeleted
	b.observed = nil
	return nil
}

// ForKind creates an unbuilt model of the given kind for an object known
// only from the controller.
func ForKind(kind contrail.Kind, uuid string) (Object, error) {
	switch kind {
	case contrail.KindVirtualNetwork:
		return NewVirtualNetwork(uuid), nil
	case contrail.KindVirtualMachine:
		return NewVirtualMachine(uuid), nil
	case contrail.KindVMInterface:
		return NewVMInterface(uuid), nil
	case contrail.KindInstanceIP:
		return NewInstanceIP(uuid), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
