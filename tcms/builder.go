package tcms

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/node"
	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/train"
)

// Sensor reporting intervals of the standard consist.
const (
	SpeedSensorInterval   sim.VTimeInSec = 0.5
	DefaultSensorInterval sim.VTimeInSec = 1.0
)

// ControlLoopFreq is the frame rate of the control loop.
const ControlLoopFreq = 60 * sim.Hz

// Builder can build schedulers with the standard train consist wired to a
// message bus.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	bus    bus.Bus
	seed   int64

	pLoss    float64
	minDelay sim.VTimeInSec
	maxDelay sim.VTimeInSec
}

// MakeBuilder creates a Builder with the default control-loop rate and
// channel parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:     ControlLoopFreq,
		seed:     1,
		pLoss:    bus.DefaultLossProbability,
		minDelay: bus.DefaultMinDelay,
		maxDelay: bus.DefaultMaxDelay,
	}
}

// WithEngine sets the engine that drives the control loop.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithFreq sets the control-loop frequency.
func (b Builder) WithFreq(f sim.Freq) Builder {
	b.freq = f
	return b
}

// WithBus sets an externally owned bus, such as a relay-backed client. When
// unset, Build creates a local lossy transport.
func (b Builder) WithBus(bb bus.Bus) Builder {
	b.bus = bb
	return b
}

// WithSeed sets the seed driving the wind jitter, the channel draws, and
// passenger boarding.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLossProbability sets the loss probability of the local transport.
func (b Builder) WithLossProbability(p float64) Builder {
	b.pLoss = p
	return b
}

// WithDelayBounds sets the delay bounds of the local transport.
func (b Builder) WithDelayBounds(min, max sim.VTimeInSec) Builder {
	b.minDelay = min
	b.maxDelay = max
	return b
}

// Build creates the scheduler together with the train, the bus endpoints,
// and the registry, fully wired.
func (b Builder) Build(name string) *Scheduler {
	if b.engine == nil {
		panic("scheduler requires an engine")
	}

	s := new(Scheduler)
	s.freq = b.freq
	s.rng = rand.New(rand.NewSource(b.seed))
	s.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, s)

	s.bus = b.bus
	if s.bus == nil {
		s.local = bus.MakeBuilder().
			WithEngine(b.engine).
			WithLossProbability(b.pLoss).
			WithDelayBounds(b.minDelay, b.maxDelay).
			WithSeed(b.seed).
			Build(name + ".Bus")
		s.bus = s.local
	}

	s.train = train.NewTrain(b.seed)
	s.registry = bus.NewRegistry()

	s.buildControl()
	s.buildActuators()
	s.buildSensors()

	return s
}

func (s *Scheduler) buildControl() {
	s.control = node.NewControl(node.ControlID, s.bus)
	mustRegister(s.registry, node.ControlID, s.control)
}

func (s *Scheduler) buildActuators() {
	mustRegister(s.registry, node.TractionID,
		node.NewActuator(node.TractionID, &tractionSetter{train: s.train}))
	mustRegister(s.registry, node.BrakeID,
		node.NewActuator(node.BrakeID, &brakeSetter{train: s.train}))
	mustRegister(s.registry, node.EmergencyID,
		node.NewActuator(node.EmergencyID, &emergencySetter{train: s.train}))

	for i := 0; i < train.NumDoors; i++ {
		id := node.DoorActuatorID(i)
		mustRegister(s.registry, id,
			node.NewActuator(id, &doorSetter{train: s.train, index: i}))
	}
}

func (s *Scheduler) buildSensors() {
	tr := s.train

	s.sensors = append(s.sensors,
		node.NewSensor(node.SpeedSensorID, s.bus,
			func() string {
				return fmt.Sprintf("Speed:%.1f", tr.Speed)
			}, SpeedSensorInterval),
		node.NewSensor(node.PassengerSensorID, s.bus,
			func() string {
				return fmt.Sprintf("Passengers:%d", tr.Passengers)
			}, DefaultSensorInterval),
		node.NewSensor(node.StationSensorID, s.bus,
			func() string {
				if tr.AtStation() {
					return "Station:Yes"
				}
				return "Station:No"
			}, DefaultSensorInterval),
	)

	for i := 0; i < train.NumDoors; i++ {
		i := i
		s.sensors = append(s.sensors,
			node.NewSensor(node.DoorSensorID(i), s.bus,
				func() string {
					if tr.Doors[i] {
						return fmt.Sprintf("Door%d:Open", i)
					}
					return fmt.Sprintf("Door%d:Closed", i)
				}, DefaultSensorInterval))
	}
}

func mustRegister(r *bus.Registry, id bus.NodeID, rc bus.Receiver) {
	if err := r.Register(id, rc); err != nil {
		panic(err)
	}
}
