package bus

import (
	"github.com/sarchlab/tcms/sim"
)

// A Transmission is the in-flight, time-progressing representation of an
// envelope between send and delivery. Progress runs at 1/Delay, so reaching
// 1.0 coincides with the expiry of the sampled delay. Progress only ever
// increases.
type Transmission struct {
	Envelope Envelope
	SendTime sim.VTimeInSec
	Delay    sim.VTimeInSec

	progress float64
}

// Progress returns the portion of the transmission completed, in [0, 1].
func (t *Transmission) Progress() float64 {
	return t.progress
}

// ExpiryTime returns the time the transmission completes its delay.
func (t *Transmission) ExpiryTime() sim.VTimeInSec {
	return t.SendTime + t.Delay
}

func (t *Transmission) advance(delta sim.VTimeInSec) {
	if t.Delay <= 0 {
		t.progress = 1.0
		return
	}

	t.progress += float64(delta / t.Delay)
	if t.progress > 1.0 {
		t.progress = 1.0
	}
}

func (t *Transmission) complete() {
	t.progress = 1.0
}
