package sim

import (
	"sync"
)

// TickEvent is a generic event that a component can use to update its state.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent.
func MakeTickEvent(handler Handler, t VTimeInSec) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.time = t

	return evt
}

// A Ticker is an object that updates its state with ticks.
type Ticker interface {
	// Tick updates the state of the ticker. It returns true if progress is
	// made during the tick.
	Tick() bool
}

// TickScheduler can help schedule tick events.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Freq      Freq
	Engine    Engine
	secondary bool

	nextTickTime VTimeInSec
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	t := new(TickScheduler)

	t.handler = handler
	t.Engine = engine
	t.Freq = freq
	t.nextTickTime = -1 // Guarantees the first tick can be scheduled.

	return t
}

// NewSecondaryTickScheduler creates a scheduler that always schedules
// secondary tick events.
func NewSecondaryTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	t := NewTickScheduler(handler, engine, freq)
	t.secondary = true

	return t
}

// TickNow schedules a tick event at the current time.
func (t *TickScheduler) TickNow() {
	t.lock.Lock()
	now := t.CurrentTime()

	if t.nextTickTime >= now {
		t.lock.Unlock()
		return
	}

	t.nextTickTime = t.Freq.ThisTick(now)
	t.scheduleTick()
	t.lock.Unlock()
}

// TickLater schedules a tick event at the cycle after the current time.
func (t *TickScheduler) TickLater() {
	t.lock.Lock()
	tickTime := t.Freq.NextTick(t.CurrentTime())

	if t.nextTickTime >= tickTime {
		t.lock.Unlock()
		return
	}

	t.nextTickTime = tickTime
	t.scheduleTick()
	t.lock.Unlock()
}

func (t *TickScheduler) scheduleTick() {
	tick := MakeTickEvent(t.handler, t.nextTickTime)
	if t.secondary {
		tick.secondary = true
	}

	t.Engine.Schedule(tick)
}

// CurrentTime returns the current virtual time.
func (t *TickScheduler) CurrentTime() VTimeInSec {
	return t.Engine.CurrentTime()
}

// TickingComponent is a component that updates its state from cycle to
// cycle. A programmer only needs to write a tick function for it.
type TickingComponent struct {
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a new ticking component.
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewTickScheduler(tc, engine, freq)
	tc.name = name
	tc.ticker = ticker

	return tc
}

// NewSecondaryTickingComponent creates a new ticking component whose ticks
// are handled after all same-time primary events.
func NewSecondaryTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewSecondaryTickScheduler(tc, engine, freq)
	tc.name = name
	tc.ticker = ticker

	return tc
}

// Name returns the name of the ticking component.
func (c *TickingComponent) Name() string {
	return c.name
}

// Handle triggers the tick function of the TickingComponent.
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress := c.ticker.Tick()
	if madeProgress {
		c.TickLater()
	}

	return nil
}
