package labels

import (
	"maps"
	"strconv"
)

// Standard label keys for controller objects.
const (
	// KeyNamespace identifies the platform installation owning the object
	KeyNamespace = "vnsync.io/namespace"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "vnsync.io/managed-by"

	// KeyLocalID holds the platform database id of the mirrored record
	KeyLocalID = "vnsync.io/local-id"
)

// ManagedByVnsync is the value of KeyManagedBy on every object vnsync writes.
const ManagedByVnsync = "vnsync"

// LabelBuilder provides a fluent interface for building controller object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the namespace pre-set.
func NewLabelBuilder(namespace string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyNamespace: namespace,
			KeyManagedBy: ManagedByVnsync,
		},
	}
}

// WithLocalID records the platform record id.
func (lb *LabelBuilder) WithLocalID(id int64) *LabelBuilder {
	lb.labels[KeyLocalID] = strconv.FormatInt(id, 10)
	return lb
}

// WithManagedBy sets who manages this object.
func (lb *LabelBuilder) WithManagedBy(manager string) *LabelBuilder {
	lb.labels[KeyManagedBy] = manager
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// Selector returns the selector matching every object vnsync manages in namespace.
func Selector(namespace string) map[string]string {
	return map[string]string{
		KeyNamespace: namespace,
		KeyManagedBy: ManagedByVnsync,
	}
}

// LocalID extracts the platform record id from object labels.
func LocalID(labels map[string]string) (int64, bool) {
	raw, ok := labels[KeyLocalID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
