// Fan output control plugin
//
// Owns up to four binary fan outputs: M106/M107 command handling,
// spindle linkage, delayed fan 0 shutoff, persisted port assignments
// and status reporting. Installs itself into the host's hook chains at
// settings load time and stays inert if no fan can be bound to a port.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import (
	"strconv"
	"sync"

	"grbl-fans-go/pkg/bitset"
	"grbl-fans-go/pkg/hal"
	"grbl-fans-go/pkg/host"
	"grbl-fans-go/pkg/log"
	"grbl-fans-go/pkg/nvs"
)

const (
	// MaxFans is the hard limit on logical fan outputs.
	MaxFans = 4

	pluginVersion = "v0.09"
	settingsKey   = "fans"
)

var fanLabels = [MaxFans]string{"Fan 0", "Fan 1", "Fan 2", "Fan 3"}

// Config is the build-time configuration of the fan subsystem.
type Config struct {
	// Fans is the requested fan count, clamped to [1, MaxFans].
	Fans int

	// Fan0Spindle makes fan 0 mirror the active spindle driver's
	// enable output instead of claiming a discrete port. The two
	// outputs are mutually exclusive for fan 0.
	Fan0Spindle bool
}

// Subsystem is the fan plugin instance. All entry points go through
// the one instance installed into the host; there is no package state.
type Subsystem struct {
	host  *host.Host
	log   *log.Logger
	store nvs.Store
	cfg   Config
	n     int

	mu         sync.Mutex
	setting    Settings          // persisted record, owned here
	ports      [MaxFans]hal.Port // runtime bindings, claimed once at boot
	onMask     bitset.Set
	linkedMask bitset.Set
	bound      int
	installed  bool

	shutoff shutoffScheduler

	prevProgramCompleted host.ProgramCompletedFunc
	prevReset            host.ResetFunc
	prevRealtimeReport   host.RealtimeReportFunc
	prevReportOptions    host.ReportOptionsFunc
	prevOverride         host.AccessoryOverrideFunc
}

// New creates the subsystem without touching hardware or hooks; call
// Load to bind ports and install.
func New(h *host.Host, store nvs.Store, cfg Config) *Subsystem {
	n := cfg.Fans
	if n < 1 {
		n = 1
	}
	if n > MaxFans {
		h.Log.Warn("fans: max number of allowed fans is %d, requested %d", MaxFans, n)
		n = MaxFans
	}
	s := &Subsystem{
		host:  h,
		log:   h.Log.WithPrefix("fans"),
		store: store,
		cfg:   cfg,
		n:     n,
	}
	for i := range s.ports {
		s.ports[i] = hal.PortNone
	}
	s.shutoff = newReactorShutoff(h.Reactor, func() { s.SetState(0, false) })
	return s
}

// FanCount returns the configured fan count.
func (s *Subsystem) FanCount() int {
	return s.n
}

// NumBound returns how many fans bound to an output at boot.
func (s *Subsystem) NumBound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Installed reports whether the plugin's hooks are live.
func (s *Subsystem) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed
}

// ShutoffPending reports whether a delayed fan 0 turn-off is armed.
func (s *Subsystem) ShutoffPending() bool {
	return s.shutoff.Pending()
}

// OnMask returns the current fan on-state mask.
func (s *Subsystem) OnMask() bitset.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onMask
}

// LinkedMask returns the subset of OnMask driven by spindle linkage.
func (s *Subsystem) LinkedMask() bitset.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkedMask
}

// install hooks the subsystem into the host chains. Called once, from
// Load, after at least one fan bound.
func (s *Subsystem) install() {
	s.host.InterceptMCode(s.newMCodeHandler)
	s.prevProgramCompleted = s.host.InterceptProgramCompleted(s.onProgramCompleted)
	s.prevReset = s.host.InterceptReset(s.onReset)
	s.prevRealtimeReport = s.host.InterceptRealtimeReport(s.onRealtimeReport)
	s.prevReportOptions = s.host.InterceptReportOptions(s.onReportOptions)
	s.prevOverride = s.host.InterceptAccessoryOverride(s.onAccessoryOverride)
	if s.host.Spindles != nil {
		s.host.Spindles.OnSelect(s.installSpindleHook)
	}
	s.installed = true
}

// onReportOptions appends the plugin identification lines to the
// options report.
func (s *Subsystem) onReportOptions(w hal.StreamWriter, newOpt bool) {
	if s.prevReportOptions != nil {
		s.prevReportOptions(w, newOpt)
	}
	if !newOpt {
		w("[PLUGIN:Fans " + pluginVersion + "]\n")
		w("[FANS:" + strconv.Itoa(s.n) + "]\n")
	}
}

// onRealtimeReport appends the fan mask when it changed since the
// previous report.
func (s *Subsystem) onRealtimeReport(w hal.StreamWriter, report host.ReportFlags) {
	if report.Fan {
		w("|Fan:")
		w(strconv.FormatUint(uint64(s.OnMask().Value()), 10))
	}
	if s.prevRealtimeReport != nil {
		s.prevRealtimeReport(w, report)
	}
}
