package bus

import (
	"math/rand"

	"github.com/sarchlab/tcms/sim"
)

// Default timing and loss parameters of the simulated channel.
const (
	DefaultLossProbability = 0.05

	DefaultMinDelay sim.VTimeInSec = 0.1
	DefaultMaxDelay sim.VTimeInSec = 0.5
)

// Builder can build transports.
type Builder struct {
	engine   sim.Engine
	pLoss    float64
	minDelay sim.VTimeInSec
	maxDelay sim.VTimeInSec
	seed     int64
}

// MakeBuilder creates a Builder with the default loss and delay parameters.
func MakeBuilder() Builder {
	return Builder{
		pLoss:    DefaultLossProbability,
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		seed:     1,
	}
}

// WithEngine sets the engine that drives the transport.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithLossProbability sets the probability that an envelope is silently
// discarded.
func (b Builder) WithLossProbability(p float64) Builder {
	b.pLoss = p
	return b
}

// WithDelayBounds sets the bounds of the uniformly sampled delivery delay.
func (b Builder) WithDelayBounds(min, max sim.VTimeInSec) Builder {
	b.minDelay = min
	b.maxDelay = max
	return b
}

// WithSeed sets the seed of the random source that draws loss and delay.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// Build creates the transport.
func (b Builder) Build(name string) *Transport {
	if b.engine == nil {
		panic("transport requires an engine")
	}

	if b.maxDelay < b.minDelay {
		panic("max delay must not be smaller than min delay")
	}

	t := new(Transport)
	t.name = name
	t.engine = b.engine
	t.pLoss = b.pLoss
	t.minDelay = b.minDelay
	t.maxDelay = b.maxDelay
	t.rng = rand.New(rand.NewSource(b.seed))

	return t
}
