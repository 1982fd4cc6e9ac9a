package model

import (
	"net/netip"
	"strconv"

	"github.com/google/uuid"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/naming"
)

// instanceIPNamespace scopes the name-based UUIDs of instance IPs.
var instanceIPNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://vnsync.io/instance-ip"))

// InstanceIPUUID returns the stable UUID of the binding of address to a NIC.
func InstanceIPUUID(nicUUID, address string) string {
	return uuid.NewSHA1(instanceIPNamespace, []byte(nicUUID+"/"+address)).String()
}

// InstanceIPModel mirrors one address bound to a NIC. It requires exactly
// one interface parent.
type InstanceIPModel struct {
	base

	nicID   int64
	address netip.Addr
}

// NewInstanceIP creates an instance IP model. Use InstanceIPUUID for the id.
func NewInstanceIP(id string) *InstanceIPModel {
	return &InstanceIPModel{base: newBase(contrail.KindInstanceIP, id)}
}

// Build derives the controller object from an address binding. The address
// must belong to the family it is recorded as and lie inside the network's
// subnet when the network declares one.
func (m *InstanceIPModel) Build(c *Controller, ip *store.InstanceIP) error {
	if err := m.checkBuild(contrail.KindVMInterface); err != nil {
		return err
	}
	id := strconv.FormatInt(ip.NicID, 10)
	addr, err := netip.ParseAddr(ip.Address)
	if err != nil {
		return &ValidationError{Kind: m.kind, ID: id, Field: "address", Reason: err.Error()}
	}
	v6 := ip.Family == store.IPv6
	if addr.Is6() != v6 || addr.Is4In6() {
		return &ValidationError{Kind: m.kind, ID: id, Field: "address", Reason: "does not match family " + string(ip.Family)}
	}

	vmi := m.Interface()
	vn := vmi.Network()
	refs := []contrail.Ref{refTo(vmi)}
	if vn != nil {
		subnet := vn.Subnet()
		if v6 {
			subnet = vn.Subnet6()
		}
		if subnet.IsValid() && !subnet.Contains(addr) {
			return &InvalidSubnetError{Kind: m.kind, UUID: m.uuid, Address: ip.Address, CIDR: subnet.String()}
		}
		refs = append(refs, refTo(vn))
	}

	instanceName := ""
	if vm := vmi.VM(); vm != nil {
		instanceName = vm.InstanceName()
	}

	m.nicID = ip.NicID
	m.address = addr

	m.built(&contrail.Object{
		FQName: naming.InstanceIP(instanceName, vmi.DeviceID(), v6),
		Refs:   refs,
		Attrs: map[string]string{
			"address": addr.String(),
			"family":  string(ip.Family),
		},
		Labels: c.labels(ip.NicID),
	})
	return nil
}

// Address returns the bound address.
func (m *InstanceIPModel) Address() netip.Addr { return m.address }

// Interface returns the interface parent, nil outside a graph.
func (m *InstanceIPModel) Interface() *VMInterfaceModel {
	vmi, _ := m.parent(contrail.KindVMInterface).(*VMInterfaceModel)
	return vmi
}
