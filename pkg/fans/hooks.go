// Program-completion, reset and accessory-override hooks
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import "grbl-fans-go/pkg/host"

// onProgramCompleted turns all fans off at program end, honoring the
// fan 0 off-delay, then chains to the previously installed handler.
func (s *Subsystem) onProgramCompleted(flow host.ProgramFlow, checkMode bool) {
	delay := s.offDelay()
	for fan := s.n - 1; fan >= 0; fan-- {
		if fan == 0 && delay > 0 && s.assigned(0) {
			s.scheduleShutoff(delay)
			continue
		}
		s.SetState(fan, false)
	}
	if s.prevProgramCompleted != nil {
		s.prevProgramCompleted(flow, checkMode)
	}
}

// onReset turns every fan off immediately. Reset is a hard boundary:
// no delay is honored and any pending shutoff dies with it.
func (s *Subsystem) onReset() {
	if s.prevReset != nil {
		s.prevReset()
	}
	s.shutoff.Cancel()
	for fan := s.n - 1; fan >= 0; fan-- {
		s.SetState(fan, false)
	}
}

// onAccessoryOverride toggles fan 0 on the realtime override command,
// forwarding anything else.
func (s *Subsystem) onAccessoryOverride(cmd byte) {
	if cmd == host.CmdOverrideFan0Toggle {
		if s.assigned(0) {
			s.SetState(0, !s.GetState(0))
		}
		return
	}
	if s.prevOverride != nil {
		s.prevOverride(cmd)
	}
}
