package datarecording

import (
	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/train"
)

// Table names used by the tracers.
const (
	BusTraceTable  = "bus_trace"
	TelemetryTable = "telemetry"
)

// A BusTraceEntry records one event in the life of an envelope on the bus.
type BusTraceEntry struct {
	Time      float64
	Event     string
	MsgID     string
	Sender    string
	Recipient string
	Payload   string
}

// A BusTracer records the send, drop, and deliver events of a transport.
// Attach it with transport.AcceptHook.
type BusTracer struct {
	engine   sim.Engine
	recorder DataRecorder
}

// NewBusTracer creates a BusTracer and creates its table.
func NewBusTracer(engine sim.Engine, recorder DataRecorder) *BusTracer {
	recorder.CreateTable(BusTraceTable, BusTraceEntry{})

	return &BusTracer{
		engine:   engine,
		recorder: recorder,
	}
}

// Func records the hooked envelope event.
func (t *BusTracer) Func(ctx sim.HookCtx) {
	env, ok := ctx.Item.(bus.Envelope)
	if !ok {
		return
	}

	t.recorder.InsertData(BusTraceTable, BusTraceEntry{
		Time:      float64(t.engine.CurrentTime()),
		Event:     ctx.Pos.Name,
		MsgID:     env.ID,
		Sender:    string(env.Sender),
		Recipient: string(env.Recipient),
		Payload:   env.Payload,
	})
}

// A TelemetryEntry is one periodic sample of the train state.
type TelemetryEntry struct {
	Time             float64
	Speed            float64
	TargetSpeed      float64
	BrakesApplied    bool
	EmergencyStop    bool
	Passengers       int
	AtStation        bool
	DistanceTraveled float64
}

// A TelemetryTracer samples the train state at a fixed interval. Attach it
// with engine.AcceptHook; it samples after each handled event, at most once
// per interval.
type TelemetryTracer struct {
	engine   sim.Engine
	recorder DataRecorder
	train    *train.Train
	interval sim.VTimeInSec

	lastSample sim.VTimeInSec
	sampled    bool
}

// NewTelemetryTracer creates a TelemetryTracer and creates its table.
func NewTelemetryTracer(
	engine sim.Engine,
	recorder DataRecorder,
	tr *train.Train,
	interval sim.VTimeInSec,
) *TelemetryTracer {
	recorder.CreateTable(TelemetryTable, TelemetryEntry{})

	return &TelemetryTracer{
		engine:   engine,
		recorder: recorder,
		train:    tr,
		interval: interval,
	}
}

// Func samples the train if the interval has elapsed.
func (t *TelemetryTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	now := t.engine.CurrentTime()
	if t.sampled && now-t.lastSample < t.interval {
		return
	}

	t.recorder.InsertData(TelemetryTable, TelemetryEntry{
		Time:             float64(now),
		Speed:            t.train.Speed,
		TargetSpeed:      t.train.TargetSpeed,
		BrakesApplied:    t.train.BrakesApplied,
		EmergencyStop:    t.train.EmergencyStop,
		Passengers:       t.train.Passengers,
		AtStation:        t.train.AtStation(),
		DistanceTraveled: t.train.DistanceTraveled,
	})

	t.lastSample = now
	t.sampled = true
}
