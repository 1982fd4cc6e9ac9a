package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
)

// Operation names used in reports, logs and metrics.
const (
	OpSyncNetwork   = "sync_network"
	OpSyncVM        = "sync_vm"
	OpSyncNic       = "sync_nic"
	OpDeleteNetwork = "delete_network"
	OpDeleteVM      = "delete_vm"
	OpDeleteNic     = "delete_nic"
	OpFullSync      = "full_sync"
)

// Orchestrator runs event-triggered syncs and deletes. Each call builds the
// minimal subgraph for its entity, runs in the caller's goroutine and holds
// the per-entity locks of every entity it touches.
type Orchestrator struct {
	ctrl          *model.Controller
	locks         *Locker
	enableMetrics bool
}

// Option configures an Orchestrator or FullSync.
type Option func(*options)

type options struct {
	locks         *Locker
	enableMetrics bool
	parallelism   int
	timeout       time.Duration
}

// WithLocker shares a locker between orchestrator and full-sync.
func WithLocker(l *Locker) Option {
	return func(o *options) { o.locks = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(enabled bool) Option {
	return func(o *options) { o.enableMetrics = enabled }
}

// WithParallelism bounds the number of VM subgraphs full-sync pushes at once.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithTimeout bounds one full-sync pass.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	o := options{parallelism: 4}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = NewLocker()
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}
	return o
}

// NewOrchestrator creates an orchestrator over the given execution context.
func NewOrchestrator(c *model.Controller, opts ...Option) *Orchestrator {
	o := buildOptions(opts)
	return &Orchestrator{ctrl: c, locks: o.locks, enableMetrics: o.enableMetrics}
}

// run executes fn with a fresh report and returns the report together with
// its aggregated error.
func (o *Orchestrator) run(ctx context.Context, op string, id int64, fn func(ctx context.Context, r *Report) error) (*Report, error) {
	start := time.Now()
	logger := log.FromContext(ctx).WithValues("operation", op, "id", id)
	ctx = log.IntoContext(ctx, logger)

	report := newReport(op)
	if err := fn(ctx, report); err != nil {
		report.fail(err)
	}
	report.Duration = time.Since(start)

	err := report.Err()
	if err != nil {
		logger.Error(err, "operation failed", "summary", report.Summary())
	} else {
		logger.V(1).Info("operation succeeded", "summary", report.Summary(), "duration", report.Duration)
	}
	if o.enableMetrics {
		recordReconcileMetric(op, err, report.Duration.Seconds())
	}
	return report, err
}

// SyncNetwork pushes the virtual network of a platform network.
func (o *Orchestrator) SyncNetwork(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpSyncNetwork, id, func(ctx context.Context, r *Report) error {
		n, err := liveNetwork(ctx, o.ctrl.Store, id)
		if err != nil {
			return err
		}
		unlock := o.locks.Lock(lockKey(keyNetwork, id))
		defer unlock()

		p := newPass(o.ctrl, r)
		p.addNetwork(n)
		p.pushAll(ctx)
		return nil
	})
}

// SyncVM pushes a VM together with every NIC it has, their networks,
// interfaces and instance IPs.
func (o *Orchestrator) SyncVM(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpSyncVM, id, func(ctx context.Context, r *Report) error {
		vm, err := liveVM(ctx, o.ctrl.Store, id)
		if err != nil {
			return err
		}
		nics, err := o.ctrl.Store.ListNicsByVM(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list nics of vm %d: %w", id, err)
		}

		keys := []string{lockKey(keyVM, id)}
		for _, nic := range nics {
			keys = append(keys, lockKey(keyNic, nic.ID), lockKey(keyNetwork, nic.NetworkID))
		}
		unlock := o.locks.Lock(keys...)
		defer unlock()

		p := newPass(o.ctrl, r)
		vmm := p.addVM(vm)
		for _, nic := range nics {
			n, err := liveNetwork(ctx, o.ctrl.Store, nic.NetworkID)
			if err != nil {
				r.fail(fmt.Errorf("nic %d: %w", nic.ID, err))
				continue
			}
			p.addNic(ctx, nic, vmm, p.addNetwork(n))
		}
		p.pushAll(ctx)
		return nil
	})
}

// SyncNic pushes a NIC with its VM, network, interface and instance IPs.
func (o *Orchestrator) SyncNic(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpSyncNic, id, func(ctx context.Context, r *Report) error {
		nic, err := liveNic(ctx, o.ctrl.Store, id)
		if err != nil {
			return err
		}
		vm, err := liveVM(ctx, o.ctrl.Store, nic.VMID)
		if err != nil {
			return fmt.Errorf("nic %d: %w", id, err)
		}
		n, err := liveNetwork(ctx, o.ctrl.Store, nic.NetworkID)
		if err != nil {
			return fmt.Errorf("nic %d: %w", id, err)
		}

		unlock := o.locks.Lock(lockKey(keyVM, vm.ID), lockKey(keyNetwork, n.ID), lockKey(keyNic, id))
		defer unlock()

		p := newPass(o.ctrl, r)
		p.addNic(ctx, nic, p.addVM(vm), p.addNetwork(n))
		p.pushAll(ctx)
		return nil
	})
}

// DeleteNic deletes a NIC's interface and its instance IPs.
func (o *Orchestrator) DeleteNic(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpDeleteNic, id, func(ctx context.Context, r *Report) error {
		nic, err := o.ctrl.Store.FindNic(ctx, id)
		if err != nil {
			return err
		}
		ips, err := o.ctrl.Inventory(ctx, contrail.KindInstanceIP)
		if err != nil {
			return fmt.Errorf("failed to list instance ips: %w", err)
		}

		unlock := o.locks.Lock(lockKey(keyVM, nic.VMID), lockKey(keyNic, id))
		defer unlock()

		p := newPass(o.ctrl, r)
		vmi := model.NewVMInterface(nic.UUID)
		if !p.add(vmi) {
			return nil
		}
		p.addStaleIPs(vmi, ips)
		p.deleteAll(ctx, nil)
		return nil
	})
}

// DeleteVM deletes a VM's controller object. Interfaces whose NIC is gone
// are deleted first; an interface whose NIC still exists blocks the VM with
// a DependencyInUseError.
func (o *Orchestrator) DeleteVM(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpDeleteVM, id, func(ctx context.Context, r *Report) error {
		vm, err := o.ctrl.Store.FindVM(ctx, id)
		if err != nil {
			return err
		}
		return o.deleteWithInterfaces(ctx, r, model.NewVirtualMachine(vm.UUID), lockKey(keyVM, id),
			func(n *store.Nic) bool { return n.VMID == id })
	})
}

// DeleteNetwork deletes a network's controller object, with the same
// dependency rules as DeleteVM.
func (o *Orchestrator) DeleteNetwork(ctx context.Context, id int64) (*Report, error) {
	return o.run(ctx, OpDeleteNetwork, id, func(ctx context.Context, r *Report) error {
		n, err := o.ctrl.Store.FindNetwork(ctx, id)
		if err != nil {
			return err
		}
		return o.deleteWithInterfaces(ctx, r, model.NewVirtualNetwork(n.UUID), lockKey(keyNetwork, id),
			func(nic *store.Nic) bool { return nic.NetworkID == id })
	})
}

// deleteWithInterfaces discovers the controller interfaces referencing
// parent, then deletes the stale ones with their IPs before parent. owns
// reports whether a live local NIC still belongs to parent.
func (o *Orchestrator) deleteWithInterfaces(ctx context.Context, r *Report, parent model.Object, parentKey string, owns func(*store.Nic) bool) error {
	vmis, err := o.ctrl.Inventory(ctx, contrail.KindVMInterface)
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}
	ips, err := o.ctrl.Inventory(ctx, contrail.KindInstanceIP)
	if err != nil {
		return fmt.Errorf("failed to list instance ips: %w", err)
	}

	var children []*contrail.Object
	keys := []string{parentKey}
	for _, obj := range vmis {
		if !obj.References(parent.UUID()) {
			continue
		}
		children = append(children, obj)
		if nicID, ok := labels.LocalID(obj.Labels); ok {
			keys = append(keys, lockKey(keyNic, nicID))
		}
	}

	unlock := o.locks.Lock(keys...)
	defer unlock()

	p := newPass(o.ctrl, r)
	if !p.add(parent) {
		return nil
	}
	live := make(map[string]bool)
	for _, obj := range children {
		vmi := model.NewVMInterface(obj.UUID)
		if !p.add(vmi) {
			continue
		}
		if err := p.graph.AddTo(vmi, parent); err != nil {
			r.record(vmi, err)
			continue
		}
		alive, err := o.nicAlive(ctx, obj, owns)
		if err != nil {
			return err
		}
		if alive {
			live[vmi.UUID()] = true
			continue
		}
		p.addStaleIPs(vmi, ips)
	}
	p.deleteAll(ctx, live)
	return nil
}

// nicAlive reports whether the local NIC behind a controller interface
// still exists and satisfies owns.
func (o *Orchestrator) nicAlive(ctx context.Context, obj *contrail.Object, owns func(*store.Nic) bool) (bool, error) {
	nicID, ok := labels.LocalID(obj.Labels)
	if !ok {
		return false, nil
	}
	nic, err := o.ctrl.Store.FindNic(ctx, nicID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return !nic.Removed && nic.UUID == obj.UUID && owns(nic), nil
}

// addStaleIPs adds every inventory instance IP referencing vmi below it.
func (p *pass) addStaleIPs(vmi *model.VMInterfaceModel, inventory []*contrail.Object) {
	for _, obj := range inventory {
		if !obj.References(vmi.UUID()) {
			continue
		}
		if _, ok := p.graph.Get(obj.UUID); ok {
			continue
		}
		ip := model.NewInstanceIP(obj.UUID)
		if !p.add(ip) {
			continue
		}
		if err := p.graph.AddTo(ip, vmi); err != nil {
			p.report.record(ip, err)
		}
	}
}

func liveNetwork(ctx context.Context, s store.Reader, id int64) (*store.Network, error) {
	n, err := s.FindNetwork(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Removed {
		return nil, removed("network", id)
	}
	return n, nil
}

func liveVM(ctx context.Context, s store.Reader, id int64) (*store.VM, error) {
	vm, err := s.FindVM(ctx, id)
	if err != nil {
		return nil, err
	}
	if vm.Removed {
		return nil, removed("vm", id)
	}
	return vm, nil
}

func liveNic(ctx context.Context, s store.Reader, id int64) (*store.Nic, error) {
	nic, err := s.FindNic(ctx, id)
	if err != nil {
		return nil, err
	}
	if nic.Removed {
		return nil, removed("nic", id)
	}
	return nic, nil
}

func removed(kind string, id int64) error {
	return fmt.Errorf("%s %d is removed: %w", kind, id, store.ErrNotFound)
}
