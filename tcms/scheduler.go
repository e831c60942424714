// Package tcms assembles the train control and monitoring simulation: it
// wires the physical train, the message bus, and the standard set of
// sensors, actuators, and the control unit, and drives them with a
// fixed-rate control loop.
package tcms

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/node"
	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/train"
)

// Automatic station-approach parameters. The stopping distance assumes the
// service-brake deceleration plus a fixed buffer.
const (
	approachBuffer     = 20.0
	approachMinSpeed   = 2.0
	arrivalSnapRange   = 10.0
	arrivalSnapSpeed   = 5.0
	maxBoardingPerStop = 30
)

// A Scheduler runs the control loop. Each tick it runs the station-approach
// logic, updates the sensors, advances and drains the bus, dispatches
// delivered envelopes, and steps the physical train.
type Scheduler struct {
	*sim.TickingComponent

	freq     sim.Freq
	bus      bus.Bus
	local    *bus.Transport
	registry *bus.Registry
	train    *train.Train
	control  *node.Control
	sensors  []*node.Sensor
	rng      *rand.Rand

	wasAtStation bool
}

// Train returns the physical train model.
func (s *Scheduler) Train() *train.Train {
	return s.train
}

// Control returns the control unit.
func (s *Scheduler) Control() *node.Control {
	return s.control
}

// Transport returns the local bus transport, or nil when the scheduler runs
// over a networked bus.
func (s *Scheduler) Transport() *bus.Transport {
	return s.local
}

// Registry returns the endpoint registry.
func (s *Scheduler) Registry() *bus.Registry {
	return s.registry
}

// Start schedules the first tick of the control loop.
func (s *Scheduler) Start() {
	s.TickLater()
}

// PressButton forwards an operator button press to the control unit.
func (s *Scheduler) PressButton(button string) {
	s.control.OnButtonClick(s.CurrentTime(), button, s.train)
}

// Tick advances the simulation by one control-loop frame.
func (s *Scheduler) Tick() bool {
	now := s.CurrentTime()
	delta := s.freq.Period()

	s.runStationApproach(now)

	for _, sensor := range s.sensors {
		sensor.Update(now)
	}

	if s.local != nil {
		s.local.Tick(delta)
	}

	for _, env := range s.bus.Drain() {
		s.registry.Dispatch(env)
	}

	s.train.Update(now, delta)

	atStation := s.train.AtStation()
	if atStation && !s.wasAtStation {
		s.onArrival()
	}
	s.wasAtStation = atStation

	return true
}

// runStationApproach brakes the train ahead of the next station. Close to
// the platform, at low speed, the stop is snapped rather than braked, so the
// dwell detection can latch.
func (s *Scheduler) runStationApproach(now sim.VTimeInSec) {
	if s.train.EmergencyStopped() || s.train.AtStation() ||
		s.train.LeavingStation() {
		return
	}

	speed := s.train.Speed
	remaining := s.train.NextStopDistance()
	stopping := speed*speed/(2*train.Deceleration) + approachBuffer

	switch {
	case remaining < arrivalSnapRange && speed < arrivalSnapSpeed:
		s.train.Speed = 0
		s.train.TargetSpeed = 0
		if s.control.SendCommand(now, node.BrakeID, node.CmdReleaseBrakes) {
			s.control.BrakesApplied = false
		}
	case remaining < stopping && speed > approachMinSpeed:
		if s.control.SendCommand(now, node.BrakeID, node.CmdApplyBrakes) {
			s.control.BrakesApplied = true
			s.control.ApproachingStation = true
		}
	}
}

// onArrival opens the doors and boards passengers once the station hold has
// latched.
func (s *Scheduler) onArrival() {
	s.train.BrakesApplied = false
	s.control.BrakesApplied = false

	for i := range s.train.Doors {
		s.train.Doors[i] = true
	}

	boarding := 1 + s.rng.Intn(maxBoardingPerStop)
	for i := 0; i < boarding; i++ {
		s.train.BoardPassengers()
	}

	s.control.ApproachingStation = false
	s.control.DisplayMessage = fmt.Sprintf(
		"Arrived at station, %d passengers boarding", boarding)
}
