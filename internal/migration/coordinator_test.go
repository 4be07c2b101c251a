package migration

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/probe"
	"sdnguard/internal/topology"
)

var _ = Describe("Coordinator", func() {
	var (
		mockCtrl    *gomock.Controller
		queue       *MockEnqueuer
		prober      *MockProber
		recorder    *MockRecorder
		coordinator *Coordinator
		slept       []time.Duration
		clock       time.Time
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewMockEnqueuer(mockCtrl)
		prober = NewMockProber(mockCtrl)
		recorder = NewMockRecorder(mockCtrl)
		slept = nil
		clock = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

		topo, err := topology.New(topology.DefaultSpec())
		Expect(err).ToNot(HaveOccurred())

		coordinator = NewCoordinator(
			Config{
				Target:      Target{Host: "h3", FromSwitch: "s2", ToSwitch: "s1"},
				SettleDelay: 2 * time.Second,
			},
			topo, queue, prober, observability.Discard(),
			WithSleep(func(d time.Duration) { slept = append(slept, d) }),
			WithClock(func() time.Time { return clock }),
			WithRecorder(recorder),
		)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start idle with the latch released", func() {
		rec, state, engaged := coordinator.Snapshot()
		Expect(rec).To(BeNil())
		Expect(state).To(Equal(StateIdle))
		Expect(engaged).To(BeFalse())
	})

	It("should enqueue, settle, probe and verify", func() {
		gomock.InOrder(
			queue.EXPECT().
				EnqueueBatch(gomock.Any(), gomock.Len(7)).
				DoAndReturn(func(_ context.Context, cmds []cmdqueue.Command) error {
					Expect(coordinator.Engaged()).To(BeTrue())
					_, state, _ := coordinator.Snapshot()
					Expect(state).To(Equal(StateEnqueuing))
					Expect(cmds[0]).To(Equal(cmdqueue.SetLinkStatus{A: "h3", B: "s2"}))
					return nil
				}),
			prober.EXPECT().
				Check(gomock.Any(), "s1", "s1-eth4").
				DoAndReturn(func(context.Context, string, string) probe.Result {
					Expect(slept).To(Equal([]time.Duration{2 * time.Second}))
					_, state, _ := coordinator.Snapshot()
					Expect(state).To(Equal(StateVerifying))
					return probe.Result{Status: models.MigrationVerified}
				}),
			recorder.EXPECT().
				RecordMigration(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, rec models.MigrationRecord) error {
					Expect(rec.Status).To(Equal(models.MigrationVerified))
					Expect(rec.Status.Terminal()).To(BeTrue())
					return nil
				}),
		)

		coordinator.Trigger("10.0.0.3", 150)

		rec, state, engaged := coordinator.Snapshot()
		Expect(state).To(Equal(StateVerified))
		Expect(engaged).To(BeTrue())
		Expect(rec.ID).ToNot(BeEmpty())
		Expect(rec.Host).To(Equal("h3"))
		Expect(rec.Destination).To(Equal("10.0.0.3"))
		Expect(rec.PacketCount).To(Equal(150))
		Expect(rec.From).To(Equal(models.AttachmentPoint{Switch: "s2", Port: "s2-eth1"}))
		Expect(rec.To).To(Equal(models.AttachmentPoint{Switch: "s1", Port: "s1-eth4"}))
		Expect(rec.Plan).To(HaveLen(7))
		Expect(rec.TriggeredAt).To(Equal(clock))
		Expect(rec.VerifiedAt).To(Equal(clock))
		Expect(rec.Diagnostic).To(BeEmpty())
	})

	It("should fail with the probe diagnostic and not retry", func() {
		queue.EXPECT().EnqueueBatch(gomock.Any(), gomock.Any()).Return(nil)
		prober.EXPECT().
			Check(gomock.Any(), "s1", "s1-eth4").
			Return(probe.Result{
				Status: models.MigrationFailed,
				Switch: "s1",
				Port:   "s1-eth4",
				Raw:    "s1-eth1\ns1-eth2\n",
			}).
			Times(1)
		recorder.EXPECT().RecordMigration(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		coordinator.Trigger("10.0.0.3", 150)

		rec, state, engaged := coordinator.Snapshot()
		Expect(state).To(Equal(StateFailed))
		Expect(engaged).To(BeTrue())
		Expect(rec.Status).To(Equal(models.MigrationFailed))
		Expect(rec.Diagnostic).To(ContainSubstring("s1-eth2"))
	})

	It("should fail terminally when the enqueue fails", func() {
		queue.EXPECT().EnqueueBatch(gomock.Any(), gomock.Any()).Return(cmdqueue.ErrFull)
		recorder.EXPECT().
			RecordMigration(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, rec models.MigrationRecord) error {
				Expect(rec.Status).To(Equal(models.MigrationFailed))
				Expect(rec.Status.Terminal()).To(BeTrue())
				return nil
			})

		coordinator.Trigger("10.0.0.3", 150)

		rec, state, _ := coordinator.Snapshot()
		Expect(state).To(Equal(StateFailed))
		Expect(rec.Diagnostic).To(Equal(cmdqueue.ErrFull.Error()))
		Expect(slept).To(BeEmpty())
	})

	It("should never run a second plan", func() {
		queue.EXPECT().EnqueueBatch(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		prober.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(probe.Result{Status: models.MigrationVerified}).Times(1)
		recorder.EXPECT().RecordMigration(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		coordinator.Trigger("10.0.0.3", 150)
		coordinator.Trigger("10.0.0.1", 300)
		coordinator.Trigger("10.0.0.3", 150)

		rec, _, _ := coordinator.Snapshot()
		Expect(rec.Destination).To(Equal("10.0.0.3"))
	})

	Context("when the target cannot be planned", func() {
		BeforeEach(func() {
			topo, err := topology.New(topology.DefaultSpec())
			Expect(err).ToNot(HaveOccurred())
			coordinator = NewCoordinator(
				Config{Target: Target{Host: "h1", FromSwitch: "s2", ToSwitch: "s1"}},
				topo, queue, prober, observability.Discard(),
				WithSleep(func(time.Duration) {}),
			)
		})

		It("should fail without enqueueing", func() {
			coordinator.Trigger("10.0.0.1", 101)

			rec, state, engaged := coordinator.Snapshot()
			Expect(state).To(Equal(StateFailed))
			Expect(engaged).To(BeTrue())
			Expect(rec.Diagnostic).To(ContainSubstring("no such link"))
		})
	})
})
