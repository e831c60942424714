// Package bus implements the TCMS message bus: an unreliable, delayed,
// broadcast-style channel that endpoints use to exchange short text
// messages.
package bus

import (
	"github.com/sarchlab/tcms/sim"
)

// A NodeID identifies an endpoint on the bus. It is unique per endpoint and
// stable for the lifetime of the simulation.
type NodeID string

// An Envelope is the atomic unit of transport. It is immutable once built.
type Envelope struct {
	ID        string
	Sender    NodeID
	Recipient NodeID
	Payload   string
	CreatedAt sim.VTimeInSec
}

// EnvelopeBuilder can build envelopes.
type EnvelopeBuilder struct {
	sender    NodeID
	recipient NodeID
	payload   string
	createdAt sim.VTimeInSec
}

// MakeEnvelopeBuilder creates an EnvelopeBuilder.
func MakeEnvelopeBuilder() EnvelopeBuilder {
	return EnvelopeBuilder{}
}

// WithSender sets the sender of the envelope.
func (b EnvelopeBuilder) WithSender(id NodeID) EnvelopeBuilder {
	b.sender = id
	return b
}

// WithRecipient sets the intended final recipient of the envelope.
func (b EnvelopeBuilder) WithRecipient(id NodeID) EnvelopeBuilder {
	b.recipient = id
	return b
}

// WithPayload sets the payload of the envelope.
func (b EnvelopeBuilder) WithPayload(payload string) EnvelopeBuilder {
	b.payload = payload
	return b
}

// WithCreatedAt sets the creation time of the envelope.
func (b EnvelopeBuilder) WithCreatedAt(t sim.VTimeInSec) EnvelopeBuilder {
	b.createdAt = t
	return b
}

// Build creates the envelope.
func (b EnvelopeBuilder) Build() Envelope {
	return Envelope{
		ID:        sim.GetIDGenerator().Generate(),
		Sender:    b.sender,
		Recipient: b.recipient,
		Payload:   b.payload,
		CreatedAt: b.createdAt,
	}
}

// A Bus accepts envelopes for delivery. Send is fire-and-forget: the caller
// receives no error and no confirmation. Drain removes and returns all the
// envelopes that have completed delivery, in arrival order.
type Bus interface {
	Send(sender, recipient NodeID, payload string)
	Drain() []Envelope
}
