package sim

import (
	gomock "go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TickScheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		engine    *MockEngine
		ticker    *MockTicker
		scheduler *TickScheduler
		comp      *TickingComponent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		ticker = NewMockTicker(mockCtrl)
		comp = NewTickingComponent("Comp", engine, 60*Hz, ticker)
		scheduler = comp.TickScheduler
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule a tick at the next cycle", func() {
		engine.EXPECT().CurrentTime().Return(VTimeInSec(0))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(evt Event) {
			Expect(evt.Time()).To(BeNumerically("~", 1.0/60, 1e-12))
		})

		scheduler.TickLater()
	})

	It("should not schedule twice for the same cycle", func() {
		engine.EXPECT().CurrentTime().Return(VTimeInSec(0)).Times(2)
		engine.EXPECT().Schedule(gomock.Any()).Times(1)

		scheduler.TickLater()
		scheduler.TickLater()
	})

	It("should keep ticking while progress is made", func() {
		tick := MakeTickEvent(comp, 1.0/60)

		ticker.EXPECT().Tick().Return(true)
		engine.EXPECT().CurrentTime().Return(VTimeInSec(1.0 / 60))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(evt Event) {
			Expect(evt.Time()).To(BeNumerically("~", 2.0/60, 1e-12))
		})

		err := comp.Handle(tick)

		Expect(err).To(BeNil())
	})

	It("should stop ticking when no progress is made", func() {
		tick := MakeTickEvent(comp, 1.0/60)

		ticker.EXPECT().Tick().Return(false)

		err := comp.Handle(tick)

		Expect(err).To(BeNil())
	})
})
