package model

import (
	"strconv"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/naming"
)

// VirtualMachineModel mirrors a VM instance.
type VirtualMachineModel struct {
	base

	localID      int64
	instanceName string
	vmState      store.VMState
}

// NewVirtualMachine creates a VM model identified by the VM UUID.
func NewVirtualMachine(uuid string) *VirtualMachineModel {
	return &VirtualMachineModel{base: newBase(contrail.KindVirtualMachine, uuid)}
}

// Build derives the controller object from the VM record.
func (m *VirtualMachineModel) Build(c *Controller, vm *store.VM) error {
	if err := m.checkBuild(); err != nil {
		return err
	}
	id := strconv.FormatInt(vm.ID, 10)
	if vm.UUID != m.uuid {
		return &ValidationError{Kind: m.kind, ID: id, Field: "uuid", Reason: "does not match model"}
	}
	if vm.InstanceName == "" {
		return &ValidationError{Kind: m.kind, ID: id, Field: "instance_name", Reason: "is required"}
	}

	m.localID = vm.ID
	m.instanceName = vm.InstanceName
	m.vmState = vm.State

	m.built(&contrail.Object{
		FQName: naming.VirtualMachine(vm.InstanceName),
		Attrs: map[string]string{
			"instance_name": vm.InstanceName,
			"project":       c.Names.Project(vm.DomainName, vm.AccountName)[1],
		},
		Labels: c.labels(vm.ID),
	})
	return nil
}

// LocalID returns the platform VM id.
func (m *VirtualMachineModel) LocalID() int64 { return m.localID }

// InstanceName returns the VM's instance name.
func (m *VirtualMachineModel) InstanceName() string { return m.instanceName }

// ShouldBeActive reports whether the VM's interfaces should be up.
func (m *VirtualMachineModel) ShouldBeActive() bool {
	return ShouldBeActive(m.vmState)
}

// ShouldBeActive reports whether a VM in state s is expected in the controller
// with its interfaces up.
func ShouldBeActive(s store.VMState) bool {
	switch s {
	case store.VMError, store.VMDestroyed, store.VMExpunging:
		return false
	default:
		return true
	}
}
