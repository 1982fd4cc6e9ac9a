package model

import (
	"net"
	"strconv"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/naming"
)

// Interface admin states.
const (
	AdminStateUp   = "up"
	AdminStateDown = "down"
)

// VMInterfaceModel mirrors a NIC. It requires exactly one VM parent and one
// network parent.
type VMInterfaceModel struct {
	base

	localID  int64
	deviceID int
}

// NewVMInterface creates an interface model identified by the NIC UUID.
func NewVMInterface(uuid string) *VMInterfaceModel {
	return &VMInterfaceModel{base: newBase(contrail.KindVMInterface, uuid)}
}

// Build derives the controller object from the NIC record. References to the
// VM and network come from the parent models.
func (m *VMInterfaceModel) Build(c *Controller, nic *store.Nic) error {
	if err := m.checkBuild(contrail.KindVirtualMachine, contrail.KindVirtualNetwork); err != nil {
		return err
	}
	id := strconv.FormatInt(nic.ID, 10)
	if nic.UUID != m.uuid {
		return &ValidationError{Kind: m.kind, ID: id, Field: "uuid", Reason: "does not match model"}
	}
	if nic.MACAddress == "" {
		return &ValidationError{Kind: m.kind, ID: id, Field: "mac_address", Reason: "is required"}
	}
	mac, err := net.ParseMAC(nic.MACAddress)
	if err != nil {
		return &ValidationError{Kind: m.kind, ID: id, Field: "mac_address", Reason: err.Error()}
	}
	if nic.DeviceID < 0 {
		return &ValidationError{Kind: m.kind, ID: id, Field: "device_id", Reason: "must not be negative"}
	}

	vm := m.VM()
	vn := m.parent(contrail.KindVirtualNetwork)

	adminState := AdminStateDown
	if vm.ShouldBeActive() {
		adminState = AdminStateUp
	}

	m.localID = nic.ID
	m.deviceID = nic.DeviceID

	m.built(&contrail.Object{
		FQName: naming.VMInterface(vm.InstanceName(), nic.DeviceID),
		Refs:   []contrail.Ref{refTo(vm), refTo(vn)},
		Attrs: map[string]string{
			"mac_address": mac.String(),
			"device_id":   strconv.Itoa(nic.DeviceID),
			"admin_state": adminState,
		},
		Labels: c.labels(nic.ID),
	})
	return nil
}

// LocalID returns the platform NIC id.
func (m *VMInterfaceModel) LocalID() int64 { return m.localID }

// DeviceID returns the NIC's device index on its VM.
func (m *VMInterfaceModel) DeviceID() int { return m.deviceID }

// VM returns the VM parent, nil outside a graph.
func (m *VMInterfaceModel) VM() *VirtualMachineModel {
	vm, _ := m.parent(contrail.KindVirtualMachine).(*VirtualMachineModel)
	return vm
}

// Network returns the network parent, nil outside a graph.
func (m *VMInterfaceModel) Network() *VirtualNetworkModel {
	vn, _ := m.parent(contrail.KindVirtualNetwork).(*VirtualNetworkModel)
	return vn
}

func refTo(o Object) contrail.Ref {
	ref := contrail.Ref{Kind: o.Kind(), UUID: o.UUID()}
	if d := o.Desired(); d != nil {
		ref.FQName = d.FQName
	}
	return ref
}
