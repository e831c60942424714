package bus

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tcms/sim"
)

// deliveryProbe records the virtual time at which each envelope becomes
// drainable.
type deliveryProbe struct {
	engine sim.Engine

	delivered []Envelope
	times     []sim.VTimeInSec
}

func (p *deliveryProbe) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosBusDeliver {
		return
	}

	p.delivered = append(p.delivered, ctx.Item.(Envelope))
	p.times = append(p.times, p.engine.CurrentTime())
}

var _ = Describe("Transport", func() {
	var (
		engine    *sim.SerialEngine
		transport *Transport
		probe     *deliveryProbe
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		transport = MakeBuilder().
			WithEngine(engine).
			WithLossProbability(0).
			WithSeed(1).
			Build("Transport")
		probe = &deliveryProbe{engine: engine}
		transport.AcceptHook(probe)
	})

	It("should deliver a lossless send within the max delay", func() {
		transport.Send("Speed", "Control", "Speed:10.0")

		err := engine.RunUntil(DefaultMaxDelay)

		Expect(err).To(BeNil())

		envs := transport.Drain()
		Expect(envs).To(HaveLen(1))
		Expect(envs[0].Sender).To(Equal(NodeID("Speed")))
		Expect(envs[0].Recipient).To(Equal(NodeID("Control")))
		Expect(envs[0].Payload).To(Equal("Speed:10.0"))
	})

	It("should return nothing before any delay has expired", func() {
		transport.Send("Speed", "Control", "Speed:10.0")

		err := engine.RunUntil(0.05)

		Expect(err).To(BeNil())
		Expect(transport.Drain()).To(BeEmpty())

		err = engine.RunUntil(DefaultMaxDelay)

		Expect(err).To(BeNil())
		Expect(transport.Drain()).To(HaveLen(1))
		Expect(transport.Drain()).To(BeEmpty())
	})

	It("should bound every observed delay by the delay interval", func() {
		const numMsgs = 1000

		for i := 0; i < numMsgs; i++ {
			transport.Send("Speed", "Control", fmt.Sprintf("Speed:%d", i))
		}

		err := engine.Run()

		Expect(err).To(BeNil())
		Expect(probe.delivered).To(HaveLen(numMsgs))

		for i, env := range probe.delivered {
			observedDelay := probe.times[i] - env.CreatedAt
			Expect(observedDelay).To(And(
				BeNumerically(">=", DefaultMinDelay),
				BeNumerically("<=", DefaultMaxDelay),
			))
		}
	})

	It("should deliver in delay-expiry order, not send order", func() {
		const numMsgs = 1000

		for i := 0; i < numMsgs; i++ {
			transport.Send("Speed", "Control", fmt.Sprintf("Speed:%d", i))
		}

		err := engine.Run()

		Expect(err).To(BeNil())

		envs := transport.Drain()
		Expect(envs).To(HaveLen(numMsgs))

		// All envelopes were created at time 0, so expiry order is delay
		// order. With 1000 independent uniform draws, at least one pair must
		// arrive out of send order.
		outOfSendOrder := false
		for i := 1; i < len(envs); i++ {
			Expect(probe.times[i] >= probe.times[i-1]).To(BeTrue())

			var prevSeq, currSeq int
			fmt.Sscanf(envs[i-1].Payload, "Speed:%d", &prevSeq)
			fmt.Sscanf(envs[i].Payload, "Speed:%d", &currSeq)
			if currSeq < prevSeq {
				outOfSendOrder = true
			}
		}
		Expect(outOfSendOrder).To(BeTrue())
	})

	It("should never deliver an envelope twice", func() {
		const numMsgs = 2000

		for i := 0; i < numMsgs; i++ {
			transport.Send("Speed", "Control", fmt.Sprintf("Speed:%d", i))
		}

		seen := make(map[string]bool)
		total := 0
		for t := sim.VTimeInSec(0.05); t <= 0.55; t += 0.05 {
			Expect(engine.RunUntil(t)).To(Succeed())

			for _, env := range transport.Drain() {
				Expect(seen[env.ID]).To(BeFalse())
				seen[env.ID] = true
				total++
			}
		}

		Expect(total).To(Equal(numMsgs))
	})

	It("should converge the delivered fraction to 1-p", func() {
		const (
			numMsgs = 10000
			pLoss   = 0.1
		)

		lossyEngine := sim.NewSerialEngine()
		lossy := MakeBuilder().
			WithEngine(lossyEngine).
			WithLossProbability(pLoss).
			WithSeed(7).
			Build("LossyTransport")

		for i := 0; i < numMsgs; i++ {
			lossy.Send("Speed", "Control", fmt.Sprintf("Speed:%d", i))
		}

		Expect(lossyEngine.Run()).To(Succeed())

		delivered := float64(len(lossy.Drain()))
		expected := float64(numMsgs) * (1 - pLoss)
		sigma := math.Sqrt(numMsgs * pLoss * (1 - pLoss))

		Expect(delivered).To(BeNumerically("~", expected, 5*sigma))
	})

	It("should advance progress monotonically and clamp at 1", func() {
		transport.Send("Speed", "Control", "Speed:10.0")

		trans := transport.Transmissions()
		Expect(trans).To(HaveLen(1))
		Expect(trans[0].Progress()).To(BeZero())

		prev := 0.0
		for i := 0; i < 100; i++ {
			transport.Tick(0.01)

			curr := transport.Transmissions()[0].Progress()
			Expect(curr >= prev).To(BeTrue())
			prev = curr
		}

		Expect(prev).To(Equal(1.0))
	})

	It("should remove completed transmissions from the in-flight list", func() {
		transport.Send("Speed", "Control", "Speed:10.0")

		Expect(engine.Run()).To(Succeed())

		Expect(transport.Transmissions()).To(BeEmpty())
	})
})
