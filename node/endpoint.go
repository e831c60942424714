// Package node implements the TCMS endpoints that live on the message bus:
// sensors that publish train state, actuators that apply commands to the
// train, and the control unit that aggregates reports and issues commands.
package node

import (
	"fmt"

	"github.com/sarchlab/tcms/bus"
)

// An Endpoint is a named participant on the bus. Endpoints that consume
// payloads additionally implement bus.Receiver.
type Endpoint interface {
	Name() string
}

// Well-known endpoint identifiers of the standard train consist.
const (
	ControlID   bus.NodeID = "Control"
	TractionID  bus.NodeID = "Traction"
	BrakeID     bus.NodeID = "Brake"
	EmergencyID bus.NodeID = "Emerg"

	SpeedSensorID     bus.NodeID = "Speed"
	PassengerSensorID bus.NodeID = "Pass"
	StationSensorID   bus.NodeID = "Station"
)

// DoorActuatorID returns the identifier of the i-th door actuator.
func DoorActuatorID(i int) bus.NodeID {
	return bus.NodeID(fmt.Sprintf("DoorActuator%d", i))
}

// DoorSensorID returns the identifier of the i-th door sensor.
func DoorSensorID(i int) bus.NodeID {
	return bus.NodeID(fmt.Sprintf("DoorS%d", i))
}
