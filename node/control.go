package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/train"
)

// Operator buttons understood by the control unit.
const (
	ButtonStartMoving   = "Start Moving"
	ButtonApplyBrakes   = "Apply Brakes"
	ButtonReleaseBrakes = "Release Brakes"
	ButtonOpenDoors     = "Open Doors"
	ButtonCloseDoors    = "Close Doors"
	ButtonEmergencyStop = "Emergency Stop"
)

// Command payloads issued by the control unit.
const (
	CmdApplyBrakes   = "Apply Brakes"
	CmdReleaseBrakes = "Release Brakes"
)

// DefaultCommandCooldown is the minimum interval before an identical
// (target, message) command may be re-sent.
const DefaultCommandCooldown sim.VTimeInSec = 1.0

// A TrainHandle is the narrow view of the physical train that the control
// unit touches directly on manual operations.
type TrainHandle interface {
	AtStation() bool
	EmergencyStopped() bool
	BeginLeavingStation(now sim.VTimeInSec)
}

// A Control aggregates inbound sensor reports into a view of the train and
// issues commands to actuators, de-duplicated by a per-(target, message)
// cooldown window.
type Control struct {
	name     bus.NodeID
	bus      bus.Bus
	cooldown sim.VTimeInSec

	CurrentSpeed       float64
	DoorStates         [train.NumDoors]bool
	Passengers         int
	AtStation          bool
	BrakesApplied      bool
	EmergencyActive    bool
	ApproachingStation bool
	DisplayMessage     string

	emergencyStops int
	lastCommands   map[string]sim.VTimeInSec
}

// NewControl creates a control unit that issues commands over the bus.
func NewControl(name bus.NodeID, b bus.Bus) *Control {
	return &Control{
		name:         name,
		bus:          b,
		cooldown:     DefaultCommandCooldown,
		lastCommands: make(map[string]sim.VTimeInSec),
	}
}

// Name returns the control unit's bus identifier.
func (c *Control) Name() string {
	return string(c.name)
}

// Receive parses an inbound "Key:Value" sensor report into the control
// unit's view of the train. Unrecognized keys are ignored.
func (c *Control) Receive(payload string) {
	key, value, found := strings.Cut(payload, ":")
	if !found {
		return
	}

	switch {
	case key == "Speed":
		if speed, err := strconv.ParseFloat(value, 64); err == nil {
			c.CurrentSpeed = speed
		}
	case key == "Passengers":
		if passengers, err := strconv.Atoi(value); err == nil {
			c.Passengers = passengers
		}
	case key == "Station":
		c.AtStation = strings.Contains(value, "Yes")
	case strings.HasPrefix(key, "Door"):
		doorNum, err := strconv.Atoi(key[len(key)-1:])
		if err != nil || doorNum < 0 || doorNum >= train.NumDoors {
			return
		}
		c.DoorStates[doorNum] = strings.Contains(value, "Open")
	}
}

// SendCommand sends a command to the target unless an identical command was
// sent within the cooldown window. It reports whether the command was
// actually sent.
func (c *Control) SendCommand(
	now sim.VTimeInSec,
	target bus.NodeID,
	message string,
) bool {
	key := string(target) + ":" + message

	if lastSent, sent := c.lastCommands[key]; sent &&
		now-lastSent <= c.cooldown {
		return false
	}

	c.bus.Send(c.name, target, message)
	c.lastCommands[key] = now

	return true
}

// OnButtonClick handles an operator button press.
func (c *Control) OnButtonClick(
	now sim.VTimeInSec,
	button string,
	tr TrainHandle,
) {
	switch button {
	case ButtonStartMoving:
		c.startMoving(now, tr)
	case ButtonApplyBrakes:
		c.applyBrakes(now)
	case ButtonReleaseBrakes:
		c.releaseBrakes(now, tr)
	case ButtonOpenDoors:
		c.openDoors(now)
	case ButtonCloseDoors:
		c.closeDoors(now)
	case ButtonEmergencyStop:
		c.emergencyStop(now)
	}
}

func (c *Control) startMoving(now sim.VTimeInSec, tr TrainHandle) {
	for _, open := range c.DoorStates {
		if open {
			c.DisplayMessage = "Cannot start with doors open"
			return
		}
	}

	cmd := fmt.Sprintf("Set Target Speed:%v", train.CruisingSpeed)
	if c.SendCommand(now, TractionID, cmd) {
		c.DisplayMessage = "Train starting..."
		c.ApproachingStation = false
		if tr.AtStation() {
			tr.BeginLeavingStation(now)
		}
	}
}

func (c *Control) applyBrakes(now sim.VTimeInSec) {
	if c.SendCommand(now, BrakeID, CmdApplyBrakes) {
		c.BrakesApplied = true
		c.ApproachingStation = true
		c.DisplayMessage = "Brakes applied"
	}
}

func (c *Control) releaseBrakes(now sim.VTimeInSec, tr TrainHandle) {
	if !c.SendCommand(now, BrakeID, CmdReleaseBrakes) {
		return
	}

	c.BrakesApplied = false
	c.ApproachingStation = false
	c.DisplayMessage = "Brakes released"

	if c.SendCommand(now, TractionID, "Set Target Speed:0") {
		switch {
		case tr.AtStation():
			c.DisplayMessage = "Brakes released, train holding at station"
		case tr.EmergencyStopped():
			c.DisplayMessage = "Brakes released, train in emergency stop"
		default:
			c.DisplayMessage = "Brakes released, train moving"
		}
	}
}

func (c *Control) openDoors(now sim.VTimeInSec) {
	if c.CurrentSpeed >= 1.0 {
		c.DisplayMessage = "Cannot open doors while moving"
		return
	}

	for i := 0; i < train.NumDoors; i++ {
		c.SendCommand(now, DoorActuatorID(i), fmt.Sprintf("Open Door%d", i))
	}
	c.DisplayMessage = "Opening doors"
}

func (c *Control) closeDoors(now sim.VTimeInSec) {
	for i := 0; i < train.NumDoors; i++ {
		c.SendCommand(now, DoorActuatorID(i), fmt.Sprintf("Close Door%d", i))
	}
	c.DisplayMessage = "Closing doors"
}

// emergencyStop issues an emergency stop. The payload carries a running
// counter so that repeated stops are not swallowed by the actuator-side
// duplicate suppression.
func (c *Control) emergencyStop(now sim.VTimeInSec) {
	c.emergencyStops++

	cmd := fmt.Sprintf("Emergency Stop %d", c.emergencyStops)
	if c.SendCommand(now, EmergencyID, cmd) {
		c.EmergencyActive = true
		c.DisplayMessage = "EMERGENCY STOP ACTIVATED"
	}
}
