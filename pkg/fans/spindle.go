// Spindle linkage
//
// Mirrors spindle enable state into linked fans by wrapping the active
// spindle's state-set entry point. The wrapper always forwards so the
// hardware action still happens.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import (
	"grbl-fans-go/pkg/bitset"
	"grbl-fans-go/pkg/spindle"
)

// installSpindleHook runs on every spindle (re-)selection; each
// selection starts a fresh chain, so installing here never stacks a
// second wrapper on the same driver.
func (s *Subsystem) installSpindleHook(active *spindle.Selected) {
	active.Intercept(func(next spindle.StateFunc) spindle.StateFunc {
		return func(st spindle.State) {
			s.onSpindleState(st)
			next(st)
		}
	})
}

func (s *Subsystem) linkMask() bitset.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bitset.Set(s.setting.SpindleLink)
}

// onSpindleState applies one spindle state change to all linked fans,
// highest index first.
func (s *Subsystem) onSpindleState(st spindle.State) {
	link := s.linkMask()
	delay := s.offDelay()

	for fan := s.n - 1; fan >= 0; fan-- {
		if !link.Contains(fan) {
			continue
		}
		if st.On {
			s.markLinked(fan)
			s.SetState(fan, true)
			continue
		}
		// A fan turned on manually before spindle start is left
		// alone by spindle stop.
		if !s.isLinked(fan) {
			continue
		}
		if fan == 0 && delay > 0 {
			s.scheduleShutoff(delay)
			continue
		}
		s.SetState(fan, false)
	}
}
