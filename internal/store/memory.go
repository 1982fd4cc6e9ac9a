package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Reader. Put methods store copies so callers keep
// the snapshot semantics of the Postgres implementation.
type Memory struct {
	mu       sync.RWMutex
	networks map[int64]Network
	vms      map[int64]VM
	nics     map[int64]Nic
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		networks: make(map[int64]Network),
		vms:      make(map[int64]VM),
		nics:     make(map[int64]Nic),
	}
}

// PutNetwork inserts or replaces a network.
func (m *Memory) PutNetwork(n Network) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networks[n.ID] = n
}

// PutVM inserts or replaces a VM.
func (m *Memory) PutVM(vm VM) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vms[vm.ID] = vm
}

// PutNic inserts or replaces a NIC.
func (m *Memory) PutNic(n Nic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nics[n.ID] = n
}

// RemoveNic marks a NIC removed.
func (m *Memory) RemoveNic(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nics[id]; ok {
		n.Removed = true
		m.nics[id] = n
	}
}

// RemoveVM marks a VM removed.
func (m *Memory) RemoveVM(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vm, ok := m.vms[id]; ok {
		vm.Removed = true
		m.vms[id] = vm
	}
}

// RemoveNetwork marks a network removed.
func (m *Memory) RemoveNetwork(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.networks[id]; ok {
		n.Removed = true
		m.networks[id] = n
	}
}

// FindNetwork implements Reader.
func (m *Memory) FindNetwork(_ context.Context, id int64) (*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.networks[id]
	if !ok {
		return nil, notFound("network", id)
	}
	return &n, nil
}

// FindVM implements Reader.
func (m *Memory) FindVM(_ context.Context, id int64) (*VM, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vm, ok := m.vms[id]
	if !ok {
		return nil, notFound("vm", id)
	}
	return &vm, nil
}

// FindNic implements Reader.
func (m *Memory) FindNic(_ context.Context, id int64) (*Nic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nics[id]
	if !ok {
		return nil, notFound("nic", id)
	}
	return &n, nil
}

// FindInstanceIPs implements Reader.
func (m *Memory) FindInstanceIPs(ctx context.Context, nicID int64) ([]*InstanceIP, error) {
	nic, err := m.FindNic(ctx, nicID)
	if err != nil {
		return nil, err
	}
	return nic.InstanceIPs(), nil
}

// ListNetworks implements Reader.
func (m *Memory) ListNetworks(_ context.Context) ([]*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Network, 0, len(m.networks))
	for _, n := range m.networks {
		n := n
		if !n.Removed {
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListVMs implements Reader.
func (m *Memory) ListVMs(_ context.Context) ([]*VM, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*VM, 0, len(m.vms))
	for _, vm := range m.vms {
		vm := vm
		if !vm.Removed {
			out = append(out, &vm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListNics implements Reader.
func (m *Memory) ListNics(_ context.Context) ([]*Nic, error) {
	return m.listNics(func(*Nic) bool { return true }), nil
}

// ListNicsByVM implements Reader.
func (m *Memory) ListNicsByVM(_ context.Context, vmID int64) ([]*Nic, error) {
	return m.listNics(func(n *Nic) bool { return n.VMID == vmID }), nil
}

func (m *Memory) listNics(keep func(*Nic) bool) []*Nic {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Nic
	for _, n := range m.nics {
		n := n
		if !n.Removed && keep(&n) {
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
