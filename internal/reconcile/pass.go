package reconcile

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
)

// pass builds and pushes the model graph of one reconciliation pass. The
// graph is owned by the pass and discarded with it.
type pass struct {
	ctrl   *model.Controller
	graph  *model.Graph
	report *Report

	networks map[int64]*model.VirtualNetworkModel
	vms      map[int64]*model.VirtualMachineModel
	nics     map[int64]*model.VMInterfaceModel

	// observed, when set, seeds every model with the controller inventory
	// so no per-object GET is needed. A missing entry means absent.
	observed map[string]*contrail.Object

	// protected holds UUIDs whose local state could not be read. They and
	// the objects referencing them are never treated as orphans.
	protected sets.Set[string]
}

func newPass(c *model.Controller, report *Report) *pass {
	return &pass{
		ctrl:      c,
		graph:     model.NewGraph(),
		report:    report,
		networks:  make(map[int64]*model.VirtualNetworkModel),
		vms:       make(map[int64]*model.VirtualMachineModel),
		nics:      make(map[int64]*model.VMInterfaceModel),
		protected: sets.New[string](),
	}
}

func (p *pass) protect(uuid string) {
	p.protected.Insert(uuid)
}

// keeps reports whether obj must survive orphan deletion because it or
// one of its references is protected.
func (p *pass) keeps(obj *contrail.Object) bool {
	if p.protected.Has(obj.UUID) {
		return true
	}
	for _, ref := range obj.Refs {
		if p.protected.Has(ref.UUID) {
			return true
		}
	}
	return false
}

func (p *pass) add(o model.Object) bool {
	if err := p.graph.Add(o); err != nil {
		p.report.record(o, err)
		return false
	}
	if p.observed != nil {
		o.Observe(p.observed[o.UUID()])
	}
	return true
}

// addNetwork adds and builds the model of a network once per pass. It
// returns nil when the model could not be added.
func (p *pass) addNetwork(n *store.Network) *model.VirtualNetworkModel {
	if vn, ok := p.networks[n.ID]; ok {
		return vn
	}
	vn := model.NewVirtualNetwork(n.UUID)
	if !p.add(vn) {
		return nil
	}
	p.networks[n.ID] = vn
	if err := vn.Build(p.ctrl, n); err != nil {
		p.report.record(vn, err)
	}
	return vn
}

// addVM adds and builds the model of a VM once per pass.
func (p *pass) addVM(vm *store.VM) *model.VirtualMachineModel {
	if m, ok := p.vms[vm.ID]; ok {
		return m
	}
	m := model.NewVirtualMachine(vm.UUID)
	if !p.add(m) {
		return nil
	}
	p.vms[vm.ID] = m
	if err := m.Build(p.ctrl, vm); err != nil {
		p.report.record(m, err)
	}
	return m
}

// addNic links an interface and its instance IPs below vm and vn. When a
// parent failed to build, the interface and its IPs are reported skipped.
func (p *pass) addNic(ctx context.Context, nic *store.Nic, vm *model.VirtualMachineModel, vn *model.VirtualNetworkModel) {
	vmi := model.NewVMInterface(nic.UUID)
	if !p.add(vmi) {
		return
	}
	p.nics[nic.ID] = vmi

	addrs, err := p.ctrl.Store.FindInstanceIPs(ctx, nic.ID)
	if err != nil {
		p.report.record(vmi, fmt.Errorf("failed to find instance ips of nic %d: %w", nic.ID, err))
		p.protect(vmi.UUID())
		return
	}
	var ips []boundIP
	for _, addr := range addrs {
		ip := model.NewInstanceIP(model.InstanceIPUUID(nic.UUID, addr.Address))
		if !p.add(ip) {
			continue
		}
		if err := p.graph.AddTo(ip, vmi); err != nil {
			p.report.record(ip, err)
			continue
		}
		ips = append(ips, boundIP{node: ip, addr: addr})
	}

	for _, parent := range []model.Object{vm, vn} {
		if isNil(parent) || parent.State() == model.StateNew {
			p.skipAll(vmi, ips, "parent failed to build")
			return
		}
		if err := p.graph.AddTo(vmi, parent); err != nil {
			p.report.record(vmi, err)
			p.skipAll(nil, ips, "interface failed to build")
			return
		}
	}

	if err := vmi.Build(p.ctrl, nic); err != nil {
		p.report.record(vmi, err)
		p.skipAll(nil, ips, "interface failed to build")
		return
	}
	for _, ip := range ips {
		if err := ip.node.Build(p.ctrl, ip.addr); err != nil {
			p.report.record(ip.node, err)
		}
	}
}

// boundIP pairs an instance IP model with the address it is built from.
type boundIP struct {
	node *model.InstanceIPModel
	addr *store.InstanceIP
}

func (p *pass) skipAll(vmi *model.VMInterfaceModel, ips []boundIP, reason string) {
	if vmi != nil {
		p.report.skip(vmi, reason)
	}
	for _, ip := range ips {
		p.report.skip(ip.node, reason)
	}
}

// push updates nodes in the given order. A node whose parent is not Active
// is skipped, so a failure aborts its descendants but not its siblings.
func (p *pass) push(ctx context.Context, nodes []model.Object) {
	logger := log.FromContext(ctx)
	for _, o := range nodes {
		switch o.State() {
		case model.StateBuilt, model.StateActive:
		default:
			// Failed to build; already reported.
			continue
		}
		if parent := p.blockedBy(o); parent != nil {
			p.report.skip(o, fmt.Sprintf("%s %s is %s", parent.Kind(), parent.UUID(), parent.State()))
			continue
		}
		err := o.Update(ctx, p.ctrl)
		if err != nil {
			logger.Error(err, "failed to update object", "kind", o.Kind(), "uuid", o.UUID())
		}
		p.report.record(o, err)
	}
}

func (p *pass) blockedBy(o model.Object) model.Object {
	for _, parent := range p.graph.Parents(o) {
		if parent.State() != model.StateActive {
			return parent
		}
	}
	return nil
}

// pushAll updates the whole graph in topological order.
func (p *pass) pushAll(ctx context.Context) {
	order, err := p.graph.TopoOrder()
	if err != nil {
		p.report.fail(err)
		return
	}
	p.push(ctx, order)
}

// deleteAll marks every node Stale except those in live and deletes them in
// reverse order. Blocked deletes are reported and do not stop the others.
func (p *pass) deleteAll(ctx context.Context, live map[string]bool) {
	order, err := p.graph.ReverseOrder()
	if err != nil {
		p.report.fail(err)
		return
	}
	for _, o := range order {
		if !live[o.UUID()] {
			o.MarkStale()
		}
	}
	logger := log.FromContext(ctx)
	for _, o := range order {
		if live[o.UUID()] {
			p.report.skip(o, "local entity still exists")
			continue
		}
		err := o.Delete(ctx, p.ctrl)
		switch {
		case err == nil:
		case model.IsDependencyInUse(err):
			logger.Info("delete deferred, object still in use", "kind", o.Kind(), "uuid", o.UUID(), "reason", err.Error())
		default:
			logger.Error(err, "failed to delete object", "kind", o.Kind(), "uuid", o.UUID())
		}
		p.report.record(o, err)
	}
}

func isNil(o model.Object) bool {
	switch v := o.(type) {
	case nil:
		return true
	case *model.VirtualMachineModel:
		return v == nil
	case *model.VirtualNetworkModel:
		return v == nil
	default:
		return false
	}
}
