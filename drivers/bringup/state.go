package bringup

import "sync/atomic"

// State records whether the bring-up completed. It is set once and never
// reset, the IOP keeps its modules until the console is reset.
//
// A State can be shared between Loaders to make sure the modules are injected
// only once per process.
type State struct {
	complete atomic.Bool
}

func (s *State) IsComplete() bool { return s.complete.Load() }

func (s *State) MarkComplete() { s.complete.Store(true) }
