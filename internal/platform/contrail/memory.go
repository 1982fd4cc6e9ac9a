package contrail

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
)

// MemoryController is an in-process controller implementing API.
//
// It enforces the controller's referential integrity: creating or updating an
// object that references a missing object fails with ErrNotFound, and deleting
// an object that another object still references fails with ErrConflict.
// Writes are counted so callers can assert idempotence.
type MemoryController struct {
	mu          sync.Mutex
	objects     map[Kind]map[string]*Object
	unavailable bool

	Creates int
	Updates int
	Deletes int
}

// NewMemoryController creates an empty controller.
func NewMemoryController() *MemoryController {
	return &MemoryController{
		objects: make(map[Kind]map[string]*Object),
	}
}

// SetUnavailable simulates a controller outage. While set, every call fails
// with ErrUnavailable.
func (m *MemoryController) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

// Writes returns the total number of successful writes.
func (m *MemoryController) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Creates + m.Updates + m.Deletes
}

// ResetCounters zeroes the write counters.
func (m *MemoryController) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates, m.Updates, m.Deletes = 0, 0, 0
}

// Seed stores an object directly, bypassing integrity checks and counters.
func (m *MemoryController) Seed(obj *Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(obj.Kind)[obj.UUID] = obj.DeepCopy()
}

// Count returns the number of stored objects of kind.
func (m *MemoryController) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects[kind])
}

// Create implements API.
func (m *MemoryController) Create(_ context.Context, kind Kind, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("create", kind, obj.UUID); err != nil {
		return err
	}
	if existing, ok := m.bucket(kind)[obj.UUID]; ok {
		return &APIError{Op: "create", Kind: kind, UUID: obj.UUID,
			Err: fmt.Errorf("%w: %s already exists", ErrConflict, existing.QualifiedName())}
	}
	if err := m.checkRefs("create", kind, obj); err != nil {
		return err
	}

	stored := obj.DeepCopy()
	stored.Kind = kind
	m.bucket(kind)[obj.UUID] = stored
	m.Creates++
	return nil
}

// Update implements API.
func (m *MemoryController) Update(_ context.Context, kind Kind, uuid string, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("update", kind, uuid); err != nil {
		return err
	}
	stored, ok := m.bucket(kind)[uuid]
	if !ok {
		return &APIError{Op: "update", Kind: kind, UUID: uuid, Err: ErrNotFound}
	}
	if err := m.checkRefs("update", kind, obj); err != nil {
		return err
	}

	next := stored.DeepCopy()
	if obj.FQName != nil {
		next.FQName = slices.Clone(obj.FQName)
	}
	if obj.Refs != nil {
		next.Refs = obj.DeepCopy().Refs
	}
	if obj.Labels != nil {
		next.Labels = maps.Clone(obj.Labels)
	}
	if len(obj.Attrs) > 0 {
		if next.Attrs == nil {
			next.Attrs = make(map[string]string, len(obj.Attrs))
		}
		maps.Copy(next.Attrs, obj.Attrs)
	}
	m.bucket(kind)[uuid] = next
	m.Updates++
	return nil
}

// Delete implements API.
func (m *MemoryController) Delete(_ context.Context, kind Kind, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("delete", kind, uuid); err != nil {
		return err
	}
	if _, ok := m.bucket(kind)[uuid]; !ok {
		return &APIError{Op: "delete", Kind: kind, UUID: uuid, Err: ErrNotFound}
	}
	if holder := m.referrer(uuid); holder != nil {
		return &APIError{Op: "delete", Kind: kind, UUID: uuid,
			Err: fmt.Errorf("%w: still referenced by %s %s", ErrConflict, holder.Kind, holder.UUID)}
	}
	delete(m.bucket(kind), uuid)
	m.Deletes++
	return nil
}

// Get implements API.
func (m *MemoryController) Get(_ context.Context, kind Kind, uuid string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("get", kind, uuid); err != nil {
		return nil, err
	}
	obj, ok := m.bucket(kind)[uuid]
	if !ok {
		return nil, &APIError{Op: "get", Kind: kind, UUID: uuid, Err: ErrNotFound}
	}
	return obj.DeepCopy(), nil
}

// List implements API. Results are ordered by UUID.
func (m *MemoryController) List(_ context.Context, kind Kind, selector map[string]string) ([]*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("list", kind, ""); err != nil {
		return nil, err
	}
	var out []*Object
	for _, obj := range m.bucket(kind) {
		if matchesSelector(obj.Labels, selector) {
			out = append(out, obj.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (m *MemoryController) bucket(kind Kind) map[string]*Object {
	b, ok := m.objects[kind]
	if !ok {
		b = make(map[string]*Object)
		m.objects[kind] = b
	}
	return b
}

func (m *MemoryController) check(op string, kind Kind, uuid string) error {
	if m.unavailable {
		return &APIError{Op: op, Kind: kind, UUID: uuid, Status: 503, Err: ErrUnavailable}
	}
	return nil
}

func (m *MemoryController) checkRefs(op string, kind Kind, obj *Object) error {
	for _, ref := range obj.Refs {
		if _, ok := m.bucket(ref.Kind)[ref.UUID]; !ok {
			return &APIError{Op: op, Kind: kind, UUID: obj.UUID,
				Err: fmt.Errorf("%w: referenced %s %s", ErrNotFound, ref.Kind, ref.UUID)}
		}
	}
	return nil
}

func (m *MemoryController) referrer(uuid string) *Object {
	for _, b := range m.objects {
		for _, obj := range b {
			if obj.References(uuid) {
				return obj
			}
		}
	}
	return nil
}
