package sim

// An Engine is a driver of the simulation. It maintains the virtual time and
// runs the scheduled events in time order.
type Engine interface {
	Hookable

	// Schedule registers an event to happen in the future.
	Schedule(evt Event)

	// Run processes all the events scheduled in the Engine.
	Run() error

	// RunUntil processes scheduled events until the virtual time would pass
	// the given time. Events scheduled later than the given time remain in
	// the queue.
	RunUntil(t VTimeInSec) error

	// CurrentTime returns the current virtual time of the engine.
	CurrentTime() VTimeInSec

	// Pause prevents the engine from triggering more events.
	Pause()

	// Continue allows a paused engine to trigger more events.
	Continue()
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}
