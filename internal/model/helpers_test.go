package model

import (
	"time"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/naming"
)

func newTestController() (*Controller, *contrail.MemoryController) {
	api := contrail.NewMemoryController()
	return &Controller{
		Store:      store.NewMemory(),
		API:        api,
		Names:      naming.NewManager("default-domain", "default-project"),
		Namespace:  "test",
		APITimeout: time.Second,
	}, api
}

func testNetwork() *store.Network {
	return &store.Network{
		ID:          1,
		UUID:        "7f5b1e1c-0000-4000-8000-000000000001",
		Name:        "testnetwork",
		TrafficType: store.TrafficGuest,
		Gateway:     "10.1.1.1",
		CIDR:        "10.1.1.0/24",
		DomainName:  "ROOT",
		AccountName: "admin",
	}
}

func testVM() *store.VM {
	return &store.VM{
		ID:           10,
		UUID:         "7f5b1e1c-0000-4000-8000-000000000010",
		InstanceName: "i-2-10-VM",
		State:        store.VMRunning,
		DomainName:   "ROOT",
		AccountName:  "admin",
	}
}

func testNic() *store.Nic {
	return &store.Nic{
		ID:         100,
		UUID:       "7f5b1e1c-0000-4000-8000-000000000100",
		VMID:       10,
		NetworkID:  1,
		MACAddress: "02:00:0a:01:01:02",
		IP4Address: "10.1.1.2",
		DeviceID:   0,
	}
}

// chain is a fully linked and built VM, network, interface and IP subgraph.
type chain struct {
	g   *Graph
	vm  *VirtualMachineModel
	vn  *VirtualNetworkModel
	vmi *VMInterfaceModel
	ip  *InstanceIPModel
}

func buildChain(c *Controller, vmRec *store.VM, netRec *store.Network, nic *store.Nic) (*chain, error) {
	g := NewGraph()
	vm := NewVirtualMachine(vmRec.UUID)
	vn := NewVirtualNetwork(netRec.UUID)
	vmi := NewVMInterface(nic.UUID)
	addr := nic.InstanceIPs()[0]
	ip := NewInstanceIP(InstanceIPUUID(nic.UUID, addr.Address))

	for _, o := range []Object{vm, vn, vmi, ip} {
		if err := g.Add(o); err != nil {
			return nil, err
		}
	}
	for _, e := range [][2]Object{{vmi, vm}, {vmi, vn}, {ip, vmi}} {
		if err := g.AddTo(e[0], e[1]); err != nil {
			return nil, err
		}
	}
	if err := vm.Build(c, vmRec); err != nil {
		return nil, err
	}
	if err := vn.Build(c, netRec); err != nil {
		return nil, err
	}
	if err := vmi.Build(c, nic); err != nil {
		return nil, err
	}
	if err := ip.Build(c, addr); err != nil {
		return nil, err
	}
	return &chain{g: g, vm: vm, vn: vn, vmi: vmi, ip: ip}, nil
}
