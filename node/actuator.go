package node

import (
	"github.com/sarchlab/tcms/bus"
)

// A Setter applies a received command to the physical model. Implementations
// are explicit command objects holding their own target state, rather than
// closures over loop variables.
type Setter interface {
	Set(payload string)
}

// SetterFunc adapts a function to the Setter interface.
type SetterFunc func(payload string)

// Set calls the wrapped function.
func (f SetterFunc) Set(payload string) {
	f(payload)
}

// An Actuator receives commands from the bus and applies them through an
// injected setter. Re-delivery of an identical command is a no-op, which
// guards against the local-echo duplication of the networked transport.
type Actuator struct {
	name   bus.NodeID
	setter Setter

	lastPayload string
	received    bool
}

// NewActuator creates an actuator applying commands through the setter.
func NewActuator(name bus.NodeID, setter Setter) *Actuator {
	return &Actuator{
		name:   name,
		setter: setter,
	}
}

// Name returns the actuator's bus identifier.
func (a *Actuator) Name() string {
	return string(a.name)
}

// Receive applies the payload if it differs from the last received one.
func (a *Actuator) Receive(payload string) {
	if a.received && payload == a.lastPayload {
		return
	}

	a.setter.Set(payload)
	a.lastPayload = payload
	a.received = true
}
