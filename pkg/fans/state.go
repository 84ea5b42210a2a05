// Fan state store and transition operation
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import (
	"time"

	"grbl-fans-go/pkg/reactor"
	"grbl-fans-go/pkg/spindle"
)

// assignedLocked reports whether the fan drives an output this boot.
// Fan 0 in spindle-mirror mode needs no port of its own. Caller holds
// s.mu.
func (s *Subsystem) assignedLocked(fan int) bool {
	if fan < 0 || fan >= s.n {
		return false
	}
	if fan == 0 && s.cfg.Fan0Spindle {
		return true
	}
	return s.ports[fan].Valid()
}

func (s *Subsystem) assigned(fan int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignedLocked(fan)
}

// GetState returns the commanded on-state of a fan; false for
// unassigned or out-of-range fans.
func (s *Subsystem) GetState(fan int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignedLocked(fan) && s.onMask.Contains(fan)
}

// SetState is the single state-transition operation. It updates the
// masks, cancels a pending fan 0 shutoff, marks the fan field for the
// next status report and writes through to the physical output. A
// no-op for unassigned fans.
func (s *Subsystem) SetState(fan int, on bool) {
	s.mu.Lock()
	if !s.assignedLocked(fan) {
		s.mu.Unlock()
		return
	}
	if on {
		s.onMask = s.onMask.Insert(fan)
	} else {
		s.onMask = s.onMask.Remove(fan)
		s.linkedMask = s.linkedMask.Remove(fan)
	}
	port := s.ports[fan]
	mirror := fan == 0 && s.cfg.Fan0Spindle
	s.mu.Unlock()

	if fan == 0 {
		s.shutoff.Cancel()
	}
	s.host.MarkFanReport()

	if mirror {
		// Drive the spindle's enable output below the interceptor
		// chain so the write cannot re-enter the linkage logic.
		if sp := s.host.Spindles; sp != nil {
			if active := sp.Active(); active != nil {
				active.DriveRaw(spindle.State{On: on})
			}
		}
		return
	}
	s.host.Ports.DigitalOut(port, on)
}

// markLinked records that a fan's on-state is owed to spindle linkage.
// Only meaningful together with SetState(fan, true); turning a fan off
// always clears the flag again.
func (s *Subsystem) markLinked(fan int) {
	s.mu.Lock()
	if s.assignedLocked(fan) {
		s.linkedMask = s.linkedMask.Insert(fan)
	}
	s.mu.Unlock()
}

func (s *Subsystem) isLinked(fan int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkedMask.Contains(fan)
}

// offDelay returns the live fan 0 off-delay.
func (s *Subsystem) offDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.setting.OffDelayMins * float64(time.Minute))
}

// scheduleShutoff arms the delayed fan 0 turn-off, superseding any
// pending one.
func (s *Subsystem) scheduleShutoff(d time.Duration) {
	s.shutoff.Schedule(d)
}

// shutoffScheduler is the single pending delayed-shutoff task. At most
// one exists; Schedule re-arms it, Cancel idles it.
type shutoffScheduler interface {
	Schedule(d time.Duration)
	Cancel()
	Pending() bool
}

// reactorShutoff implements shutoffScheduler on the host reactor with
// one re-armable timer.
type reactorShutoff struct {
	r     *reactor.Reactor
	timer *reactor.Timer
}

func newReactorShutoff(r *reactor.Reactor, fire func()) *reactorShutoff {
	if r == nil {
		return &reactorShutoff{}
	}
	s := &reactorShutoff{r: r}
	s.timer = r.RegisterTimer(func(eventtime float64) float64 {
		fire()
		return reactor.NEVER
	}, reactor.NEVER)
	return s
}

func (s *reactorShutoff) Schedule(d time.Duration) {
	if s.timer == nil {
		return
	}
	s.r.UpdateTimer(s.timer, s.r.Monotonic()+d.Seconds())
}

func (s *reactorShutoff) Cancel() {
	if s.timer == nil {
		return
	}
	s.r.UpdateTimer(s.timer, reactor.NEVER)
}

func (s *reactorShutoff) Pending() bool {
	return s.timer != nil && s.timer.Waketime() < reactor.NEVER
}
