package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
)

// ErrSyncInProgress is returned when a full-sync pass is already running.
var ErrSyncInProgress = errors.New("full sync already in progress")

// FullSync re-derives the expected controller state from every live local
// entity, pushes it and deletes controller objects nothing accounts for.
type FullSync struct {
	ctrl          *model.Controller
	locks         *Locker
	parallelism   int
	timeout       time.Duration
	enableMetrics bool

	running atomic.Bool
}

// NewFullSync creates the full-sync job.
func NewFullSync(c *model.Controller, opts ...Option) *FullSync {
	o := buildOptions(opts)
	return &FullSync{
		ctrl:          c,
		locks:         o.locks,
		parallelism:   o.parallelism,
		timeout:       o.timeout,
		enableMetrics: o.enableMetrics,
	}
}

// Start runs a pass every interval until ctx is done. The next pass starts
// only after the previous one returned. Failures are logged.
func (f *FullSync) Start(ctx context.Context, interval time.Duration) {
	logger := log.FromContext(ctx).WithName("fullsync")
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		report, err := f.Run(log.IntoContext(ctx, logger))
		if errors.Is(err, ErrSyncInProgress) {
			logger.Info("skipping tick, previous pass still running")
			return
		}
		if err != nil {
			logger.Error(err, "full sync finished with errors", "summary", report.Summary())
			return
		}
		logger.Info("full sync finished", "summary", report.Summary(), "orphans", report.Orphans, "duration", report.Duration)
	}, interval)
}

// Run executes one pass. Per-entity failures are collected in the report
// and do not stop the pass. Only one pass runs at a time.
func (f *FullSync) Run(ctx context.Context) (*Report, error) {
	if !f.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer f.running.Store(false)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	report := newReport(OpFullSync)
	if err := f.run(ctx, report); err != nil {
		report.fail(err)
	}
	report.Duration = time.Since(start)

	err := report.Err()
	if f.enableMetrics {
		recordReconcileMetric(OpFullSync, err, report.Duration.Seconds())
		recordFullSyncMetric(report)
	}
	return report, err
}

func (f *FullSync) run(ctx context.Context, r *Report) error {
	logger := log.FromContext(ctx)

	networks, err := f.ctrl.Store.ListNetworks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	vms, err := f.ctrl.Store.ListVMs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list vms: %w", err)
	}
	nics, err := f.ctrl.Store.ListNics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nics: %w", err)
	}

	inventory, err := f.inventory(ctx)
	if err != nil {
		return err
	}

	p := newPass(f.ctrl, r)
	p.observed = inventory

	for _, n := range networks {
		p.addNetwork(n)
	}
	vmByID := make(map[int64]*store.VM, len(vms))
	for _, vm := range vms {
		vmByID[vm.ID] = vm
		p.addVM(vm)
	}
	for _, nic := range nics {
		vm, ok := vmByID[nic.VMID]
		if !ok {
			r.fail(fmt.Errorf("nic %d: vm %d: %w", nic.ID, nic.VMID, store.ErrNotFound))
			p.protect(nic.UUID)
			continue
		}
		n := p.networks[nic.NetworkID]
		if n == nil {
			r.fail(fmt.Errorf("nic %d: network %d: %w", nic.ID, nic.NetworkID, store.ErrNotFound))
			p.protect(nic.UUID)
			continue
		}
		p.addNic(ctx, nic, p.vms[vm.ID], n)
	}
	logger.V(1).Info("built expected graph", "nodes", p.graph.Len(), "observed", len(inventory))

	// Networks first, then VM subgraphs, each bounded by parallelism.
	var g errgroup.Group
	g.SetLimit(f.parallelism)
	for _, n := range networks {
		n := n
		vn := p.networks[n.ID]
		if vn == nil {
			continue
		}
		g.Go(func() error {
			unlock := f.locks.Lock(lockKey(keyNetwork, n.ID))
			defer unlock()
			p.push(ctx, []model.Object{vn})
			return nil
		})
	}
	_ = g.Wait()

	nicsByVM := make(map[int64][]int64)
	for _, nic := range nics {
		nicsByVM[nic.VMID] = append(nicsByVM[nic.VMID], nic.ID)
	}
	for _, vm := range vms {
		vm := vm
		vmm := p.vms[vm.ID]
		if vmm == nil {
			continue
		}
		g.Go(func() error {
			keys := []string{lockKey(keyVM, vm.ID)}
			for _, id := range nicsByVM[vm.ID] {
				keys = append(keys, lockKey(keyNic, id))
			}
			unlock := f.locks.Lock(keys...)
			defer unlock()
			p.push(ctx, append([]model.Object{vmm}, p.graph.Descendants(vmm)...))
			return nil
		})
	}
	_ = g.Wait()

	expected := sets.New[string]()
	for _, o := range p.graph.Nodes() {
		expected.Insert(o.UUID())
	}
	for uuid, obj := range inventory {
		if p.keeps(obj) {
			expected.Insert(uuid)
		}
	}
	f.deleteOrphans(ctx, r, inventory, expected)
	return nil
}

// inventory fetches every object of every kind owned by the namespace.
func (f *FullSync) inventory(ctx context.Context) (map[string]*contrail.Object, error) {
	out := make(map[string]*contrail.Object)
	for _, kind := range contrail.Kinds {
		objs, err := f.ctrl.Inventory(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s inventory: %w", kind, err)
		}
		for _, obj := range objs {
			out[obj.UUID] = obj
		}
	}
	return out, nil
}

// deleteOrphans deletes inventory objects outside the expected graph,
// children before parents.
func (f *FullSync) deleteOrphans(ctx context.Context, r *Report, inventory map[string]*contrail.Object, expected sets.Set[string]) {
	orphans := sets.KeySet(inventory).Difference(expected)
	if orphans.Len() == 0 {
		return
	}

	ids := sets.List(orphans)
	slices.SortStableFunc(ids, func(a, b string) int {
		return inventory[a].Kind.Rank() - inventory[b].Kind.Rank()
	})

	p := newPass(f.ctrl, r)
	p.observed = inventory
	var keys []string
	for _, id := range ids {
		obj := inventory[id]
		o, err := model.ForKind(obj.Kind, id)
		if err != nil {
			r.fail(err)
			continue
		}
		p.add(o)
		keys = append(keys, orphanLockKey(obj))
	}
	for _, id := range ids {
		child, ok := p.graph.Get(id)
		if !ok {
			continue
		}
		for _, ref := range inventory[id].Refs {
			if parent, ok := p.graph.Get(ref.UUID); ok {
				if err := p.graph.AddTo(child, parent); err != nil {
					r.record(child, err)
				}
			}
		}
	}

	unlock := f.locks.Lock(slices.DeleteFunc(keys, func(k string) bool { return k == "" })...)
	defer unlock()

	before := r.Summary()[model.StateDeleted.String()]
	p.deleteAll(ctx, nil)
	r.Orphans = r.Summary()[model.StateDeleted.String()] - before
	log.FromContext(ctx).Info("deleted orphaned objects", "candidates", orphans.Len(), "deleted", r.Orphans)
}

// orphanLockKey maps an orphan to the entity lock its local id labels it with.
func orphanLockKey(obj *contrail.Object) string {
	id, ok := labels.LocalID(obj.Labels)
	if !ok {
		return ""
	}
	switch obj.Kind {
	case contrail.KindVirtualNetwork:
		return lockKey(keyNetwork, id)
	case contrail.KindVirtualMachine:
		return lockKey(keyVM, id)
	default:
		return lockKey(keyNic, id)
	}
}
