package bot

import "sync/atomic"

// Activation is the shared trading on/off switch. The command handlers write
// it at any time; the decision loop samples it once per cycle boundary, so a
// flip takes effect at the next tick. It always starts inactive and is not
// persisted across restarts.
type Activation struct {
	active atomic.Bool
}

func NewActivation() *Activation {
	return &Activation{}
}

func (a *Activation) Start() { a.active.Store(true) }

func (a *Activation) Stop() { a.active.Store(false) }

func (a *Activation) Active() bool { return a.active.Load() }
