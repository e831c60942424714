package bus

import (
	"math/rand"
	"sync"

	"github.com/sarchlab/tcms/sim"
)

// HookPosBusSend marks when an envelope is accepted by the transport.
var HookPosBusSend = &sim.HookPos{Name: "Bus Send"}

// HookPosBusDrop marks when an envelope is discarded by the loss draw.
var HookPosBusDrop = &sim.HookPos{Name: "Bus Drop"}

// HookPosBusDeliver marks when an envelope completes its delay and becomes
// drainable.
var HookPosBusDeliver = &sim.HookPos{Name: "Bus Deliver"}

// A Transport simulates the unreliable, delayed MVB-style channel. Each
// envelope is either silently discarded with probability PLoss or delivered
// to the inbox after a delay sampled uniformly from [MinDelay, MaxDelay].
//
// Send and Drain may be called from different goroutines; the in-flight list
// and the inbox are serialized with a mutex.
type Transport struct {
	sim.HookableBase

	name   string
	engine sim.Engine

	pLoss    float64
	minDelay sim.VTimeInSec
	maxDelay sim.VTimeInSec

	mu        sync.Mutex
	rng       *rand.Rand
	inFlight  []*Transmission
	delivered []Envelope
}

// Name returns the name of the transport.
func (t *Transport) Name() string {
	return t.name
}

// Send accepts a payload for delivery. It never blocks and never reports an
// outcome: loss is undetectable to the sender.
func (t *Transport) Send(sender, recipient NodeID, payload string) {
	now := t.engine.CurrentTime()

	env := MakeEnvelopeBuilder().
		WithSender(sender).
		WithRecipient(recipient).
		WithPayload(payload).
		WithCreatedAt(now).
		Build()

	t.mu.Lock()
	lost := t.rng.Float64() < t.pLoss
	var delay sim.VTimeInSec
	if !lost {
		delay = t.minDelay +
			sim.VTimeInSec(t.rng.Float64())*(t.maxDelay-t.minDelay)
	}
	t.mu.Unlock()

	if lost {
		t.InvokeHook(sim.HookCtx{
			Domain: t,
			Pos:    HookPosBusDrop,
			Item:   env,
		})

		return
	}

	trans := &Transmission{
		Envelope: env,
		SendTime: now,
		Delay:    delay,
	}

	t.mu.Lock()
	t.inFlight = append(t.inFlight, trans)
	t.mu.Unlock()

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Pos:    HookPosBusSend,
		Item:   env,
	})

	t.engine.Schedule(newDeliveryEvent(trans.ExpiryTime(), t, trans))
}

// Drain removes and returns all envelopes that have completed their delay,
// in the order the delays expired. It returns an empty slice when nothing
// has arrived.
func (t *Transport) Drain() []Envelope {
	t.mu.Lock()
	out := t.delivered
	t.delivered = nil
	t.mu.Unlock()

	return out
}

// Tick advances the progress of all in-flight transmissions. Progress is
// transport-internal state for latency tracking; delivery itself happens at
// the exact expiry time through a scheduled event.
func (t *Transport) Tick(delta sim.VTimeInSec) {
	t.mu.Lock()
	for _, trans := range t.inFlight {
		trans.advance(delta)
	}
	t.mu.Unlock()
}

// Transmissions returns a snapshot of the in-flight transmissions.
func (t *Transport) Transmissions() []Transmission {
	t.mu.Lock()
	out := make([]Transmission, 0, len(t.inFlight))
	for _, trans := range t.inFlight {
		out = append(out, *trans)
	}
	t.mu.Unlock()

	return out
}

// Handle completes a transmission, moving its envelope from in-flight to
// the drainable inbox.
func (t *Transport) Handle(e sim.Event) error {
	evt := e.(*deliveryEvent)
	trans := evt.trans

	t.mu.Lock()
	for i, inf := range t.inFlight {
		if inf == trans {
			t.inFlight = append(t.inFlight[:i], t.inFlight[i+1:]...)
			break
		}
	}
	trans.complete()
	t.delivered = append(t.delivered, trans.Envelope)
	t.mu.Unlock()

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Pos:    HookPosBusDeliver,
		Item:   trans.Envelope,
	})

	return nil
}

// A deliveryEvent marks that an envelope completes its transmission delay.
type deliveryEvent struct {
	*sim.EventBase

	trans *Transmission
}

func newDeliveryEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	trans *Transmission,
) *deliveryEvent {
	evt := new(deliveryEvent)
	evt.EventBase = sim.NewSecondaryEventBase(t, handler)
	evt.trans = trans

	return evt
}
