package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
)

func TestVirtualNetwork_Build(t *testing.T) {
	t.Parallel()
	c, _ := newTestController()

	tests := []struct {
		name    string
		mutate  func(*store.Network)
		wantErr string
	}{
		{name: "gateway inside cidr", mutate: func(*store.Network) {}},
		{name: "gateway outside cidr", mutate: func(n *store.Network) { n.Gateway = "10.2.1.1" }, wantErr: "subnet"},
		{name: "no gateway", mutate: func(n *store.Network) { n.Gateway = "" }},
		{name: "guest without cidr", mutate: func(n *store.Network) { n.CIDR = "" }, wantErr: "validation"},
		{name: "malformed cidr", mutate: func(n *store.Network) { n.CIDR = "10.1.1.0/33" }, wantErr: "validation"},
		{name: "malformed gateway", mutate: func(n *store.Network) { n.Gateway = "10.1.1" }, wantErr: "validation"},
		{name: "ipv6 gateway outside", mutate: func(n *store.Network) {
			n.IP6CIDR = "fd00:1::/64"
			n.IP6Gateway = "fd00:2::1"
		}, wantErr: "subnet"},
		{name: "public network without cidr", mutate: func(n *store.Network) {
			n.TrafficType = store.TrafficPublic
			n.CIDR = ""
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := testNetwork()
			tt.mutate(n)
			g := NewGraph()
			vn := NewVirtualNetwork(n.UUID)
			require.NoError(t, g.Add(vn))

			err := vn.Build(c, n)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, StateBuilt, vn.State())
				return
			}
			var (
				subnet     *InvalidSubnetError
				validation *ValidationError
			)
			switch tt.wantErr {
			case "subnet":
				assert.ErrorAs(t, err, &subnet)
			case "validation":
				assert.ErrorAs(t, err, &validation)
			}
			assert.Equal(t, StateNew, vn.State())
			assert.True(t, IsPermanent(err))
		})
	}
}

func TestVirtualNetwork_Desired(t *testing.T) {
	t.Parallel()
	c, _ := newTestController()
	g := NewGraph()
	vn := NewVirtualNetwork(testNetwork().UUID)
	require.NoError(t, g.Add(vn))
	require.NoError(t, vn.Build(c, testNetwork()))

	d := vn.Desired()
	assert.Equal(t, contrail.KindVirtualNetwork, d.Kind)
	assert.Equal(t, []string{"default-domain", "admin", "testnetwork"}, d.FQName)
	assert.Equal(t, "10.1.1.0/24", d.Attrs["cidr"])
	assert.Equal(t, "test", d.Labels[labels.KeyNamespace])
	id, ok := labels.LocalID(d.Labels)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "default-domain:admin:testnetwork", vn.Name())
}

func TestBuild_RequiresParents(t *testing.T) {
	t.Parallel()
	c, _ := newTestController()

	t.Run("interface without network", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		vm := NewVirtualMachine(testVM().UUID)
		vmi := NewVMInterface(testNic().UUID)
		require.NoError(t, g.Add(vm))
		require.NoError(t, g.Add(vmi))
		require.NoError(t, g.AddTo(vmi, vm))
		require.NoError(t, vm.Build(c, testVM()))

		err := vmi.Build(c, testNic())
		var incomplete *IncompleteGraphError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, contrail.KindVirtualNetwork, incomplete.Missing)
	})

	t.Run("parent not built", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		vm := NewVirtualMachine(testVM().UUID)
		vn := NewVirtualNetwork(testNetwork().UUID)
		vmi := NewVMInterface(testNic().UUID)
		for _, o := range []Object{vm, vn, vmi} {
			require.NoError(t, g.Add(o))
		}
		require.NoError(t, g.AddTo(vmi, vm))
		require.NoError(t, g.AddTo(vmi, vn))
		require.NoError(t, vn.Build(c, testNetwork()))

		var incomplete *IncompleteGraphError
		require.ErrorAs(t, vmi.Build(c, testNic()), &incomplete)
		assert.Equal(t, contrail.KindVirtualMachine, incomplete.Missing)
		assert.Equal(t, "not built", incomplete.Reason)
	})

	t.Run("outside graph", func(t *testing.T) {
		t.Parallel()
		var incomplete *IncompleteGraphError
		assert.ErrorAs(t, NewVirtualMachine("x").Build(c, testVM()), &incomplete)
	})
}

func TestVMInterface_Build(t *testing.T) {
	t.Parallel()
	c, _ := newTestController()

	ch, err := buildChain(c, testVM(), testNetwork(), testNic())
	require.NoError(t, err)

	d := ch.vmi.Desired()
	assert.Equal(t, []string{"i-2-10-VM", "i-2-10-VM-0"}, d.FQName)
	assert.Equal(t, AdminStateUp, d.Attrs["admin_state"])
	assert.Equal(t, []string{ch.vm.UUID()}, d.RefsTo(contrail.KindVirtualMachine))
	assert.Equal(t, []string{ch.vn.UUID()}, d.RefsTo(contrail.KindVirtualNetwork))

	ipd := ch.ip.Desired()
	assert.Equal(t, []string{"i-2-10-VM-0-ip"}, ipd.FQName)
	assert.Equal(t, "10.1.1.2", ipd.Attrs["address"])
	assert.True(t, ipd.References(ch.vmi.UUID()))

	t.Run("stopped vm keeps interface up", func(t *testing.T) {
		t.Parallel()
		vm := testVM()
		vm.State = store.VMStopped
		ch, err := buildChain(c, vm, testNetwork(), testNic())
		require.NoError(t, err)
		assert.Equal(t, AdminStateUp, ch.vmi.Desired().Attrs["admin_state"])
	})

	t.Run("errored vm brings interface down", func(t *testing.T) {
		t.Parallel()
		vm := testVM()
		vm.State = store.VMError
		ch, err := buildChain(c, vm, testNetwork(), testNic())
		require.NoError(t, err)
		assert.Equal(t, AdminStateDown, ch.vmi.Desired().Attrs["admin_state"])
	})

	t.Run("bad mac", func(t *testing.T) {
		t.Parallel()
		nic := testNic()
		nic.MACAddress = "not-a-mac"
		_, err := buildChain(c, testVM(), testNetwork(), nic)
		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "mac_address", invalid.Field)
	})

	t.Run("address outside network", func(t *testing.T) {
		t.Parallel()
		nic := testNic()
		nic.IP4Address = "10.9.9.9"
		_, err := buildChain(c, testVM(), testNetwork(), nic)
		var subnet *InvalidSubnetError
		require.ErrorAs(t, err, &subnet)
		assert.Equal(t, "10.1.1.0/24", subnet.CIDR)
	})
}

func TestInstanceIPUUID_Stable(t *testing.T) {
	t.Parallel()
	a := InstanceIPUUID("nic-1", "10.0.0.2")
	assert.Equal(t, a, InstanceIPUUID("nic-1", "10.0.0.2"))
	assert.NotEqual(t, a, InstanceIPUUID("nic-1", "10.0.0.3"))
	assert.NotEqual(t, a, InstanceIPUUID("nic-2", "10.0.0.2"))
}

func TestUpdate_DependencyOrderAndIdempotence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()
	ch, err := buildChain(c, testVM(), testNetwork(), testNic())
	require.NoError(t, err)

	err = ch.vmi.Update(ctx, c)
	assert.ErrorIs(t, err, ErrParentNotActive)
	assert.Equal(t, StateBuilt, ch.vmi.State())
	assert.Zero(t, api.Writes())

	order, err := ch.g.TopoOrder()
	require.NoError(t, err)
	for _, o := range order {
		require.NoError(t, o.Update(ctx, c))
		assert.Equal(t, StateActive, o.State())
	}
	assert.Equal(t, 4, api.Creates)

	// A fresh pass over the same local state issues no writes.
	api.ResetCounters()
	again, err := buildChain(c, testVM(), testNetwork(), testNic())
	require.NoError(t, err)
	order, err = again.g.TopoOrder()
	require.NoError(t, err)
	for _, o := range order {
		require.NoError(t, o.Update(ctx, c))
	}
	assert.Zero(t, api.Writes())
}

func TestUpdate_PatchAndReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()

	push := func(n *store.Network) *VirtualNetworkModel {
		g := NewGraph()
		vn := NewVirtualNetwork(n.UUID)
		require.NoError(t, g.Add(vn))
		require.NoError(t, vn.Build(c, n))
		require.NoError(t, vn.Update(ctx, c))
		return vn
	}
	push(testNetwork())
	api.ResetCounters()

	n := testNetwork()
	n.Gateway = "10.1.1.254"
	push(n)
	assert.Equal(t, 1, api.Updates)
	got, err := api.Get(ctx, contrail.KindVirtualNetwork, n.UUID)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.254", got.Attrs["gateway"])

	n.Name = "renamed"
	push(n)
	assert.Equal(t, 2, api.Updates)
	got, err = api.Get(ctx, contrail.KindVirtualNetwork, n.UUID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name())
}

func TestUpdate_UnavailableLeavesBuilt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()
	api.SetUnavailable(true)

	g := NewGraph()
	vm := NewVirtualMachine(testVM().UUID)
	require.NoError(t, g.Add(vm))
	require.NoError(t, vm.Build(c, testVM()))

	err := vm.Update(ctx, c)
	require.Error(t, err)
	assert.True(t, contrail.IsTransient(err))
	assert.Equal(t, StateBuilt, vm.State())

	api.SetUnavailable(false)
	require.NoError(t, vm.Update(ctx, c))
	assert.Equal(t, StateActive, vm.State())
}

func TestUpdate_ObservedSkipsGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()

	g := NewGraph()
	vm := NewVirtualMachine(testVM().UUID)
	require.NoError(t, g.Add(vm))
	require.NoError(t, vm.Build(c, testVM()))
	vm.Observe(vm.Desired())

	require.NoError(t, vm.Update(ctx, c))
	assert.Equal(t, StateActive, vm.State())
	assert.Zero(t, api.Count(contrail.KindVirtualMachine), "trusted observation, nothing written")
}

func TestDelete_DependencyInUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()
	ch, err := buildChain(c, testVM(), testNetwork(), testNic())
	require.NoError(t, err)
	order, err := ch.g.TopoOrder()
	require.NoError(t, err)
	for _, o := range order {
		require.NoError(t, o.Update(ctx, c))
	}

	ch.vm.MarkStale()
	err = ch.vm.Delete(ctx, c)
	var inUse *DependencyInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, StateStale, ch.vm.State())
	assert.Equal(t, 1, api.Count(contrail.KindVMInterface))

	reverse, err := ch.g.ReverseOrder()
	require.NoError(t, err)
	for _, o := range reverse {
		o.MarkStale()
	}
	for _, o := range reverse {
		require.NoError(t, o.Delete(ctx, c))
		assert.Equal(t, StateDeleted, o.State())
	}
	for _, kind := range contrail.Kinds {
		assert.Zero(t, api.Count(kind))
	}
}

func TestDelete_ControllerConflictAndNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, api := newTestController()

	api.Seed(&contrail.Object{UUID: "vn-1", Kind: contrail.KindVirtualNetwork, FQName: []string{"d", "p", "n"}})
	api.Seed(&contrail.Object{UUID: "foreign", Kind: contrail.KindVMInterface, FQName: []string{"x"},
		Refs: []contrail.Ref{{Kind: contrail.KindVirtualNetwork, UUID: "vn-1"}}})

	vn := NewVirtualNetwork("vn-1")
	vn.MarkStale()
	err := vn.Delete(ctx, c)
	assert.True(t, IsDependencyInUse(err))
	assert.True(t, contrail.IsConflict(err))

	gone := NewVirtualMachine("never-created")
	gone.MarkStale()
	require.NoError(t, gone.Delete(ctx, c))
	assert.Equal(t, StateDeleted, gone.State())

	assert.Error(t, NewVirtualMachine("new").Delete(ctx, c), "delete requires Stale")
	assert.False(t, errors.Is(err, ErrCycle))
}
