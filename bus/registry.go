package bus

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrDuplicateRegistration is returned when two endpoints claim the same
// NodeID. The first registration remains authoritative.
var ErrDuplicateRegistration = errors.New("duplicate registration")

// ErrUnknownRecipient is returned when a dispatched envelope addresses an
// endpoint that is not registered. The envelope is dropped and logged; the
// condition is never fatal.
var ErrUnknownRecipient = errors.New("unknown recipient")

// A Receiver is an endpoint capability: it consumes payloads addressed to
// the endpoint.
type Receiver interface {
	Receive(payload string)
}

// A Registry maps NodeIDs to delivery targets and fans drained envelopes
// out to them. Matching is by exact string equality; there are no wildcard
// or broadcast recipients.
type Registry struct {
	mu        sync.Mutex
	endpoints map[NodeID]Receiver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[NodeID]Receiver),
	}
}

// Register associates an endpoint with an id. At most one live endpoint may
// hold an id at any time.
func (r *Registry) Register(id NodeID, endpoint Receiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.endpoints[id]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, id)
	}

	r.endpoints[id] = endpoint

	return nil
}

// Deregister removes the endpoint registered under the id, if any.
func (r *Registry) Deregister(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.endpoints, id)
}

// Dispatch routes an envelope to the endpoint registered under its
// recipient. An unknown recipient drops the envelope.
func (r *Registry) Dispatch(env Envelope) error {
	r.mu.Lock()
	endpoint, found := r.endpoints[env.Recipient]
	r.mu.Unlock()

	if !found {
		log.Printf("[bus] recipient %s not registered, dropping %q",
			env.Recipient, env.Payload)

		return fmt.Errorf("%w: %s", ErrUnknownRecipient, env.Recipient)
	}

	endpoint.Receive(env.Payload)

	return nil
}
