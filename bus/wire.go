package bus

import (
	"encoding/json"
	"errors"
)

// A Frame is the wire representation of one bus message. Target is the
// outer channel address used when relaying through a rendezvous point;
// RealTarget, when present, is the intended final recipient and takes
// precedence over Target at dispatch. A frame with Register set is a
// registration handshake and carries no message.
type Frame struct {
	Register   string `json:"register,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Target     string `json:"target,omitempty"`
	RealTarget string `json:"real_target,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrMalformedFrame is returned when a frame cannot be decoded or carries
// neither a registration nor an addressable message.
var ErrMalformedFrame = errors.New("malformed frame")

// EncodeFrame serializes a frame to its wire form.
func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses a frame from its wire form.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, ErrMalformedFrame
	}

	if f.Register == "" && f.Target == "" && f.RealTarget == "" {
		return Frame{}, ErrMalformedFrame
	}

	return f, nil
}

// IsRegistration tells if the frame is a registration handshake.
func (f Frame) IsRegistration() bool {
	return f.Register != ""
}

// IntendedRecipient returns the recipient the dispatcher must route by.
// RealTarget is preferred over the outer channel address.
func (f Frame) IntendedRecipient() NodeID {
	if f.RealTarget != "" {
		return NodeID(f.RealTarget)
	}

	return NodeID(f.Target)
}

// Envelope converts a message frame into a local envelope, routing by the
// intended recipient.
func (f Frame) Envelope() Envelope {
	return MakeEnvelopeBuilder().
		WithSender(NodeID(f.Sender)).
		WithRecipient(f.IntendedRecipient()).
		WithPayload(f.Message).
		Build()
}

// RegistrationFrame builds the handshake frame an endpoint sends before
// exchanging any other message.
func RegistrationFrame(id NodeID) Frame {
	return Frame{Register: string(id)}
}
