package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/naming"
)

const (
	networkID int64 = 1
	vmID      int64 = 10
	nicID     int64 = 100
)

type fixture struct {
	store *store.Memory
	api   *contrail.MemoryController
	ctrl  *model.Controller
	orch  *Orchestrator
	full  *FullSync
}

func newFixture() *fixture {
	s := store.NewMemory()
	s.PutNetwork(store.Network{
		ID: networkID, UUID: uuidFor(networkID), Name: "testnetwork",
		TrafficType: store.TrafficGuest, Gateway: "10.1.1.1", CIDR: "10.1.1.0/24",
		DomainName: "ROOT", AccountName: "admin",
	})
	s.PutVM(store.VM{
		ID: vmID, UUID: uuidFor(vmID), InstanceName: "i-2-10-VM",
		State: store.VMRunning, DomainName: "ROOT", AccountName: "admin",
	})
	s.PutNic(store.Nic{
		ID: nicID, UUID: uuidFor(nicID), VMID: vmID, NetworkID: networkID,
		MACAddress: "02:00:0a:01:01:02", IP4Address: "10.1.1.2",
	})

	api := contrail.NewMemoryController()
	ctrl := &model.Controller{
		Store:      s,
		API:        api,
		Names:      naming.NewManager("default-domain", "default-project"),
		Namespace:  "test",
		APITimeout: time.Second,
	}
	locks := NewLocker()
	return &fixture{
		store: s,
		api:   api,
		ctrl:  ctrl,
		orch:  NewOrchestrator(ctrl, WithLocker(locks)),
		full:  NewFullSync(ctrl, WithLocker(locks), WithParallelism(2)),
	}
}

func (f *fixture) addNetwork(id int64, cidr, gateway string) *store.Network {
	n := store.Network{
		ID: id, UUID: uuidFor(id), Name: "net", TrafficType: store.TrafficGuest,
		Gateway: gateway, CIDR: cidr, DomainName: "ROOT", AccountName: "admin",
	}
	f.store.PutNetwork(n)
	return &n
}

func (f *fixture) addNic(id, vm, network int64, ip string) {
	f.store.PutNic(store.Nic{
		ID: id, UUID: uuidFor(id), VMID: vm, NetworkID: network,
		MACAddress: "02:00:00:00:00:01", IP4Address: ip, DeviceID: int(id % 8),
	})
}

func uuidFor(id int64) string {
	return fmt.Sprintf("0b1e2a3c-0000-4000-8000-%012d", id)
}

var (
	netUUID = uuidFor(networkID)
	vmUUID  = uuidFor(vmID)
	nicUUID = uuidFor(nicID)
)

// failingIPStore fails instance ip lookups while err is set.
type failingIPStore struct {
	*store.Memory

	mu  sync.Mutex
	err error
}

func (s *failingIPStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *failingIPStore) FindInstanceIPs(ctx context.Context, nicID int64) ([]*store.InstanceIP, error) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Memory.FindInstanceIPs(ctx, nicID)
}

// staticIPStore returns a fixed address list for every nic.
type staticIPStore struct {
	*store.Memory
	addrs []*store.InstanceIP
}

func (s *staticIPStore) FindInstanceIPs(context.Context, int64) ([]*store.InstanceIP, error) {
	return s.addrs, nil
}

// slowAPI delays every read and write until delay passes or ctx is done.
type slowAPI struct {
	contrail.API
	delay time.Duration
}

func (a *slowAPI) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.delay):
		return nil
	}
}

func (a *slowAPI) Get(ctx context.Context, kind contrail.Kind, uuid string) (*contrail.Object, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	return a.API.Get(ctx, kind, uuid)
}

func (a *slowAPI) Create(ctx context.Context, kind contrail.Kind, obj *contrail.Object) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.API.Create(ctx, kind, obj)
}

func (a *slowAPI) Update(ctx context.Context, kind contrail.Kind, uuid string, obj *contrail.Object) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.API.Update(ctx, kind, uuid, obj)
}

func (a *slowAPI) List(ctx context.Context, kind contrail.Kind, selector map[string]string) ([]*contrail.Object, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	return a.API.List(ctx, kind, selector)
}
