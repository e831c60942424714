package node

import (
	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/sim"
)

// A Sensor periodically samples a state function and publishes the reading
// to the control unit. A reading identical to the last published one is
// suppressed to save bus bandwidth.
type Sensor struct {
	name     bus.NodeID
	target   bus.NodeID
	bus      bus.Bus
	read     func() string
	interval sim.VTimeInSec

	lastSendTime sim.VTimeInSec
	lastValue    string
	hasPublished bool
}

// NewSensor creates a sensor that reports to the control unit every
// interval seconds, when the reading changes.
func NewSensor(
	name bus.NodeID,
	b bus.Bus,
	read func() string,
	interval sim.VTimeInSec,
) *Sensor {
	return &Sensor{
		name:     name,
		target:   ControlID,
		bus:      b,
		read:     read,
		interval: interval,
	}
}

// Name returns the sensor's bus identifier.
func (s *Sensor) Name() string {
	return string(s.name)
}

// Update samples the state function if the interval has elapsed and
// publishes at most one report. The send time and last value advance only
// on publish.
func (s *Sensor) Update(now sim.VTimeInSec) {
	if now-s.lastSendTime <= s.interval {
		return
	}

	value := s.read()
	if s.hasPublished && value == s.lastValue {
		return
	}

	s.bus.Send(s.name, s.target, value)
	s.lastValue = value
	s.lastSendTime = now
	s.hasPublished = true
}
