package sim

import (
	"math/rand"

	gomock "go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventQueue", func() {
	var (
		mockCtrl *gomock.Controller
		queue    EventQueue
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewEventQueue()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should pop events in time order", func() {
		events := make([]*MockEvent, 0, 100)
		for i := 0; i < 100; i++ {
			evt := NewMockEvent(mockCtrl)
			evt.EXPECT().Time().
				Return(VTimeInSec(rand.Float64() * 10)).
				AnyTimes()
			events = append(events, evt)
		}

		for _, evt := range events {
			queue.Push(evt)
		}

		Expect(queue.Len()).To(Equal(100))

		prev := queue.Pop()
		for queue.Len() > 0 {
			curr := queue.Pop()
			Expect(curr.Time() >= prev.Time()).To(BeTrue())
			prev = curr
		}
	})

	It("should peek without removing", func() {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(VTimeInSec(1.0)).AnyTimes()

		queue.Push(evt)

		Expect(queue.Peek()).To(BeIdenticalTo(evt))
		Expect(queue.Len()).To(Equal(1))
	})
})
