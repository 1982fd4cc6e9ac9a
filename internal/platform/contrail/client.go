package contrail

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// Kind identifies a controller object type.
type Kind string

// Object kinds managed by vnsync.
const (
	KindVirtualNetwork Kind = "virtual-network"
	KindVirtualMachine Kind = "virtual-machine"
	KindVMInterface    Kind = "virtual-machine-interface"
	KindInstanceIP     Kind = "instance-ip"
)

// Kinds lists all managed kinds with parents before children.
var Kinds = []Kind{
	KindVirtualMachine,
	KindVirtualNetwork,
	KindVMInterface,
	KindInstanceIP,
}

// Rank returns the dependency rank of a kind. Lower ranks must exist in the
// controller before higher ranks can reference them.
func (k Kind) Rank() int {
	return slices.Index(Kinds, k)
}

// Ref is a reference from one controller object to another.
type Ref struct {
	Kind   Kind     `json:"kind"`
	UUID   string   `json:"uuid"`
	FQName []string `json:"fq_name,omitempty"`
}

// Object is the controller-side representation of a network entity.
type Object struct {
	UUID   string            `json:"uuid"`
	Kind   Kind              `json:"kind"`
	FQName []string          `json:"fq_name"`
	Refs   []Ref             `json:"refs,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Name returns the last component of the fully qualified name.
func (o *Object) Name() string {
	if len(o.FQName) == 0 {
		return ""
	}
	return o.FQName[len(o.FQName)-1]
}

// QualifiedName joins the fully qualified name with colons.
func (o *Object) QualifiedName() string {
	return strings.Join(o.FQName, ":")
}

// RefsTo returns the UUIDs this object references with the given kind.
func (o *Object) RefsTo(kind Kind) []string {
	var out []string
	for _, r := range o.Refs {
		if r.Kind == kind {
			out = append(out, r.UUID)
		}
	}
	return out
}

// References reports whether the object holds a reference to uuid.
func (o *Object) References(uuid string) bool {
	for _, r := range o.Refs {
		if r.UUID == uuid {
			return true
		}
	}
	return false
}

// DeepCopy returns an independent copy of the object.
func (o *Object) DeepCopy() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		UUID:   o.UUID,
		Kind:   o.Kind,
		FQName: slices.Clone(o.FQName),
		Attrs:  maps.Clone(o.Attrs),
		Labels: maps.Clone(o.Labels),
	}
	if o.Refs != nil {
		out.Refs = make([]Ref, len(o.Refs))
		for i, r := range o.Refs {
			out.Refs[i] = Ref{Kind: r.Kind, UUID: r.UUID, FQName: slices.Clone(r.FQName)}
		}
	}
	return out
}

// SortRefs orders references by kind rank then UUID.
func SortRefs(refs []Ref) {
	slices.SortFunc(refs, func(a, b Ref) int {
		if d := a.Kind.Rank() - b.Kind.Rank(); d != 0 {
			return d
		}
		return strings.Compare(a.UUID, b.UUID)
	})
}

// API is the controller's object API.
//
// All calls are idempotent at the client level. Update merges attributes
// key by key and replaces FQName, Refs and Labels when they are non-nil.
type API interface {
	Create(ctx context.Context, kind Kind, obj *Object) error
	Update(ctx context.Context, kind Kind, uuid string, obj *Object) error
	Delete(ctx context.Context, kind Kind, uuid string) error
	Get(ctx context.Context, kind Kind, uuid string) (*Object, error)
	// List returns all objects of kind whose labels contain every
	// key/value pair of selector. A nil selector matches everything.
	List(ctx context.Context, kind Kind, selector map[string]string) ([]*Object, error)
}

// matchesSelector reports whether labels contain every pair in selector.
func matchesSelector(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
