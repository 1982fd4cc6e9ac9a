package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
)

var _ = ginkgo.Describe("Reconciliation", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
	})

	ginkgo.Describe("syncing a NIC followed by a full sync", func() {
		ginkgo.It("leaves exactly one interface and one instance IP with the right parents", func() {
			_, err := f.orch.SyncNic(ctx, nicID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			vmis, err := f.api.List(ctx, contrail.KindVMInterface, labels.Selector("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(vmis).To(HaveLen(1))
			Expect(vmis[0].RefsTo(contrail.KindVirtualMachine)).To(ConsistOf(vmUUID))
			Expect(vmis[0].RefsTo(contrail.KindVirtualNetwork)).To(ConsistOf(netUUID))

			ips, err := f.api.List(ctx, contrail.KindInstanceIP, labels.Selector("test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ips).To(HaveLen(1))
			Expect(ips[0].References(nicUUID)).To(BeTrue())
			Expect(ips[0].Attrs).To(HaveKeyWithValue("address", "10.1.1.2"))
		})

		ginkgo.It("issues no further writes when repeated", func() {
			_, err := f.orch.SyncNic(ctx, nicID)
			Expect(err).NotTo(HaveOccurred())
			f.api.ResetCounters()

			_, err = f.orch.SyncNic(ctx, nicID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.api.Writes()).To(BeZero())
		})
	})

	ginkgo.Describe("deleting a VM", func() {
		ginkgo.BeforeEach(func() {
			_, err := f.orch.SyncNic(ctx, nicID)
			Expect(err).NotTo(HaveOccurred())
		})

		ginkgo.It("is blocked while its NIC still exists", func() {
			report, err := f.orch.DeleteVM(ctx, vmID)

			var inUse *model.DependencyInUseError
			Expect(errors.As(err, &inUse)).To(BeTrue())
			Expect(inUse.UUID).To(Equal(vmUUID))

			Expect(f.api.Count(contrail.KindVMInterface)).To(Equal(1))
			Expect(f.api.Count(contrail.KindVirtualMachine)).To(Equal(1))
			vm, ok := report.Node(vmUUID)
			Expect(ok).To(BeTrue())
			Expect(vm.State).To(Equal("Stale"))
		})

		ginkgo.It("succeeds once the NIC was deleted first", func() {
			_, err := f.orch.DeleteNic(ctx, nicID)
			Expect(err).NotTo(HaveOccurred())
			f.store.RemoveNic(nicID)

			_, err = f.orch.DeleteVM(ctx, vmID)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.api.Count(contrail.KindVirtualMachine)).To(BeZero())
			Expect(f.api.Count(contrail.KindVirtualNetwork)).To(Equal(1))
		})
	})

	ginkgo.DescribeTable("network subnet validation",
		func(gateway string, wantSubnetErr bool) {
			f.addNetwork(7, "10.1.1.0/24", gateway)
			_, err := f.orch.SyncNetwork(ctx, 7)
			if !wantSubnetErr {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			var subnet *model.InvalidSubnetError
			Expect(errors.As(err, &subnet)).To(BeTrue())
			Expect(subnet.Address).To(Equal(gateway))
		},
		ginkgo.Entry("gateway inside the CIDR", "10.1.1.1", false),
		ginkgo.Entry("gateway outside the CIDR", "10.2.1.1", true),
	)

	ginkgo.Describe("a controller outage during syncVM", func() {
		ginkgo.It("leaves the VM Built until a full sync after recovery activates it", func() {
			f.api.SetUnavailable(true)
			report, err := f.orch.SyncVM(ctx, vmID)
			Expect(contrail.IsTransient(err)).To(BeTrue())
			vm, _ := report.Node(vmUUID)
			Expect(vm.State).To(Equal("Built"))

			f.api.SetUnavailable(false)
			report, err = f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			vm, _ = report.Node(vmUUID)
			Expect(vm.State).To(Equal("Active"))
			Expect(f.api.Count(contrail.KindVirtualMachine)).To(Equal(1))
			Expect(f.api.Count(contrail.KindVMInterface)).To(Equal(1))
		})
	})

	ginkgo.Describe("an orphaned interface in the controller", func() {
		ginkgo.It("is deleted exactly once by full sync", func() {
			_, err := f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			orphan := &contrail.Object{
				UUID:   "orphan-vmi",
				Kind:   contrail.KindVMInterface,
				FQName: []string{"i-9-99-VM", "i-9-99-VM-0"},
				Refs: []contrail.Ref{
					{Kind: contrail.KindVirtualMachine, UUID: vmUUID},
					{Kind: contrail.KindVirtualNetwork, UUID: netUUID},
				},
				Attrs:  map[string]string{"admin_state": "up"},
				Labels: labels.NewLabelBuilder("test").WithLocalID(999).Build(),
			}
			f.api.Seed(orphan)
			f.api.ResetCounters()

			report, err := f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Orphans).To(Equal(1))
			Expect(f.api.Deletes).To(Equal(1))
			Expect(f.api.Count(contrail.KindVMInterface)).To(Equal(1))

			report, err = f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Orphans).To(BeZero())
			Expect(f.api.Deletes).To(Equal(1))
		})

		ginkgo.It("leaves objects of other namespaces alone", func() {
			f.api.Seed(&contrail.Object{
				UUID: "foreign-vn", Kind: contrail.KindVirtualNetwork, FQName: []string{"d", "p", "n"},
				Labels: labels.NewLabelBuilder("other").Build(),
			})
			_, err := f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.api.Get(ctx, contrail.KindVirtualNetwork, "foreign-vn")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	ginkgo.Describe("concurrent syncs", func() {
		ginkgo.It("does not block syncs of different networks", func() {
			f.addNetwork(2, "10.2.0.0/24", "10.2.0.1")
			unlock := f.orch.locks.Lock(lockKey(keyNetwork, networkID))
			defer unlock()

			done := make(chan error, 1)
			go func() {
				_, err := f.orch.SyncNetwork(ctx, 2)
				done <- err
			}()
			Eventually(done, time.Second).Should(Receive(BeNil()))
		})

		ginkgo.It("serializes syncs of the same network so the last writer wins", func() {
			unlock := f.orch.locks.Lock(lockKey(keyNetwork, networkID))

			first := make(chan error, 1)
			go func() {
				_, err := f.orch.SyncNetwork(ctx, networkID)
				first <- err
			}()
			Consistently(first, 100*time.Millisecond).ShouldNot(Receive())
			Expect(f.api.Count(contrail.KindVirtualNetwork)).To(BeZero())
			unlock()
			Eventually(first, time.Second).Should(Receive(BeNil()))

			var wg sync.WaitGroup
			for _, gw := range []string{"10.1.1.253", "10.1.1.254"} {
				gw := gw
				wg.Add(1)
				go func() {
					defer wg.Done()
					n, _ := f.store.FindNetwork(ctx, networkID)
					n.Gateway = gw
					f.store.PutNetwork(*n)
					_, _ = f.orch.SyncNetwork(ctx, networkID)
				}()
			}
			wg.Wait()

			// Whatever order the goroutines ran in, a final sync converges on
			// the store's last write.
			_, err := f.orch.SyncNetwork(ctx, networkID)
			Expect(err).NotTo(HaveOccurred())
			n, _ := f.store.FindNetwork(ctx, networkID)
			vn, err := f.api.Get(ctx, contrail.KindVirtualNetwork, netUUID)
			Expect(err).NotTo(HaveOccurred())
			Expect(vn.Attrs["gateway"]).To(Equal(n.Gateway))
			Expect(n.Gateway).To(BeElementOf("10.1.1.253", "10.1.1.254"))
		})
	})

	ginkgo.Describe("full sync single flight", func() {
		ginkgo.It("rejects a pass while another runs", func() {
			f.full.running.Store(true)
			_, err := f.full.Run(ctx)
			Expect(err).To(MatchError(ErrSyncInProgress))
			f.full.running.Store(false)

			_, err = f.full.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	ginkgo.It("converges with full sync alone", func() {
		f.addNetwork(2, "10.2.0.0/24", "10.2.0.1")
		f.store.PutVM(store.VM{ID: 11, UUID: uuidFor(11), InstanceName: "i-2-11-VM", State: store.VMStopped})
		f.addNic(102, 11, 2, "10.2.0.9")

		report, err := f.full.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Summary()["Active"]).To(Equal(8))
		Expect(f.api.Count(contrail.KindVMInterface)).To(Equal(2))
	})
})
