package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FindAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	m.PutNetwork(Network{ID: 2, UUID: "vn-2", Name: "b"})
	m.PutNetwork(Network{ID: 1, UUID: "vn-1", Name: "a"})
	m.PutVM(VM{ID: 10, UUID: "vm-10", InstanceName: "i-10"})
	m.PutNic(Nic{ID: 100, UUID: "nic-100", VMID: 10, NetworkID: 1, IP4Address: "10.1.1.2"})
	m.PutNic(Nic{ID: 101, UUID: "nic-101", VMID: 11, NetworkID: 1})

	n, err := m.FindNetwork(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "vn-1", n.UUID)

	networks, err := m.ListNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 2)
	assert.Equal(t, int64(1), networks[0].ID, "lists are ordered by id")

	nics, err := m.ListNicsByVM(ctx, 10)
	require.NoError(t, err)
	require.Len(t, nics, 1)
	assert.Equal(t, "nic-100", nics[0].UUID)

	_, err = m.FindVM(ctx, 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemory_RemovedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	m.PutNic(Nic{ID: 1, UUID: "nic-1", VMID: 1})
	m.RemoveNic(1)

	nic, err := m.FindNic(ctx, 1)
	require.NoError(t, err, "removed records stay resolvable")
	assert.True(t, nic.Removed)

	nics, err := m.ListNics(ctx)
	require.NoError(t, err)
	assert.Empty(t, nics)
}

func TestMemory_SnapshotsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	m.PutVM(VM{ID: 1, InstanceName: "i-1"})

	vm, err := m.FindVM(ctx, 1)
	require.NoError(t, err)
	vm.InstanceName = "changed"

	again, err := m.FindVM(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "i-1", again.InstanceName)
}

func TestNic_InstanceIPs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		nic  Nic
		want []AddressFamily
	}{
		{name: "no address", nic: Nic{ID: 1}, want: nil},
		{name: "ipv4 only", nic: Nic{ID: 1, IP4Address: "10.0.0.2"}, want: []AddressFamily{IPv4}},
		{name: "dual stack", nic: Nic{ID: 1, IP4Address: "10.0.0.2", IP6Address: "fd00::2"}, want: []AddressFamily{IPv4, IPv6}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []AddressFamily
			for _, ip := range tt.nic.InstanceIPs() {
				assert.Equal(t, tt.nic.ID, ip.NicID)
				got = append(got, ip.Family)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresQueries(t *testing.T) {
	t.Parallel()

	sql, args, err := networkQuery().Where(squirrel.Eq{"n.id": int64(7)}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT n.id, n.uuid"))
	assert.Contains(t, sql, "FROM networks n LEFT JOIN domain d ON d.id = n.domain_id")
	assert.Contains(t, sql, "WHERE n.id = $1")
	assert.Equal(t, []any{int64(7)}, args)

	sql, args, err = nicQuery().
		Where("c.removed IS NULL").
		Where(squirrel.Eq{"c.instance_id": int64(3)}).
		OrderBy("c.device_id").
		ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE c.removed IS NULL AND c.instance_id = $1 ORDER BY c.device_id")
	assert.Equal(t, []any{int64(3)}, args)
}
