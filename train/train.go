// Package train models the physical train that the TCMS endpoints observe
// and actuate. The model advances in fixed steps driven by the control
// loop.
package train

import (
	"math"
	"math/rand"

	"github.com/sarchlab/tcms/sim"
)

// Kinematic and layout parameters of the modeled train line.
const (
	CruisingSpeed  = 22.22
	Acceleration   = 6.0
	Deceleration   = 12.0
	EmergencyDecel = 24.0
	CoastDecay     = 0.01

	NumDoors      = 4
	MaxPassengers = 200

	NumStations    = 3
	StationSpacing = 300.0

	// A train is considered near a station when the distance to the nearest
	// station is below StationThreshold and the speed is below SpeedEpsilon.
	StationThreshold = 50.0
	SpeedEpsilon     = 0.1

	// DwellTime is how long the train must hold near-stationary near a
	// station before it counts as at the station. LeavingCooldown suppresses
	// re-detection right after departure.
	DwellTime       sim.VTimeInSec = 1.0
	LeavingCooldown sim.VTimeInSec = 5.0

	windMagnitude = 0.01
)

// A Train holds the state of the physical train. The exported fields are
// read by sensors and mutated by actuators; the station detection state is
// internal.
type Train struct {
	Speed            float64
	TargetSpeed      float64
	BrakesApplied    bool
	EmergencyStop    bool
	Doors            [NumDoors]bool
	Passengers       int
	DistanceTraveled float64

	atStation          bool
	stationStopTime    sim.VTimeInSec
	dwellTimerRunning  bool
	leavingStation     bool
	leavingStationTime sim.VTimeInSec

	rng *rand.Rand
}

// NewTrain creates a stopped train at the first station. The seed drives
// the wind jitter, keeping runs reproducible.
func NewTrain(seed int64) *Train {
	return &Train{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Update advances the train state by delta seconds of virtual time.
// Deceleration sources take precedence in the order emergency > service
// brake > station hold; otherwise the train accelerates toward the target
// speed or coasts down.
func (t *Train) Update(now, delta sim.VTimeInSec) {
	wind := (t.rng.Float64()*2 - 1) * windMagnitude
	dt := float64(delta)

	switch {
	case t.EmergencyStop:
		t.Speed = max(0, t.Speed-EmergencyDecel*dt)
		t.TargetSpeed = 0
		if t.Speed == 0 {
			t.EmergencyStop = false
		}
	case t.BrakesApplied:
		t.Speed = max(0, t.Speed-Deceleration*dt)
	case t.atStation:
		t.Speed = 0
		t.TargetSpeed = 0
	case t.Speed < t.TargetSpeed:
		t.Speed = min(t.TargetSpeed, t.Speed+Acceleration*dt+wind*dt)
	default:
		t.Speed = max(0, t.Speed-CoastDecay*dt+wind*dt)
	}

	t.DistanceTraveled += t.Speed * dt

	t.updateStationState(now)
}

func (t *Train) updateStationState(now sim.VTimeInSec) {
	nearest := t.NearestStationDistance()

	if t.leavingStation && now-t.leavingStationTime >= LeavingCooldown {
		t.leavingStation = false
	}

	if t.atStation && t.Speed > SpeedEpsilon {
		t.BeginLeavingStation(now)
	}

	switch {
	case nearest < StationThreshold &&
		t.Speed < SpeedEpsilon &&
		!t.leavingStation:
		if !t.dwellTimerRunning {
			t.stationStopTime = now
			t.dwellTimerRunning = true
		}
		if now-t.stationStopTime >= DwellTime {
			t.atStation = true
			t.TargetSpeed = 0
		}
	case nearest > StationThreshold && !t.leavingStation:
		t.atStation = false
		t.dwellTimerRunning = false
	}
}

// AtStation tells if the train is currently held at a station.
func (t *Train) AtStation() bool {
	return t.atStation
}

// LeavingStation tells if the train is in the post-departure cooldown
// window during which station re-detection is suppressed.
func (t *Train) LeavingStation() bool {
	return t.leavingStation
}

// EmergencyStopped tells if an emergency stop is in progress.
func (t *Train) EmergencyStopped() bool {
	return t.EmergencyStop
}

// BeginLeavingStation releases the station hold and starts the re-detection
// cooldown. The control unit calls this on a manual departure.
func (t *Train) BeginLeavingStation(now sim.VTimeInSec) {
	t.atStation = false
	t.leavingStation = true
	t.leavingStationTime = now
	t.dwellTimerRunning = false
}

// BoardPassengers boards one passenger, capped at the train capacity.
func (t *Train) BoardPassengers() {
	t.Passengers++
	if t.Passengers > MaxPassengers {
		t.Passengers = MaxPassengers
	}
}

// NearestStationDistance returns the loop distance between the train and
// the closest station.
func (t *Train) NearestStationDistance() float64 {
	loop := StationSpacing * NumStations
	pos := mod(t.DistanceTraveled, loop)

	nearest := loop
	for i := 0; i < NumStations; i++ {
		d := math.Abs(pos - StationSpacing*float64(i))
		if loop-d < d {
			d = loop - d
		}
		if d < nearest {
			nearest = d
		}
	}

	return nearest
}

// NextStopDistance returns the forward distance to the next station on the
// loop.
func (t *Train) NextStopDistance() float64 {
	loop := StationSpacing * NumStations
	pos := mod(t.DistanceTraveled, loop)

	next := StationSpacing
	for i := 0; i < NumStations; i++ {
		d := mod(StationSpacing*float64(i)-pos, loop)
		if d > 0 && d < next {
			next = d
		}
	}

	return next
}

func mod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m < 0 {
		m += b
	}

	return m
}
