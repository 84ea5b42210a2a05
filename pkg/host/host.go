// Package host owns the firmware host's shared event surface: the
// chained plugin hooks for program completion, reset, realtime
// reporting, options reporting and accessory overrides, plus the
// handles plugins need at install time (reactor, port pool, spindle
// selector, command chain).
//
// Hooks follow the interception contract: a plugin installs a handler
// with one of the Intercept methods, keeps the returned previous
// handler, and forwards to it after its own processing. There is no
// unhook at runtime; the chain is torn down only by a full reset of
// the host object.
package host

import (
	"strings"
	"sync"

	"grbl-fans-go/pkg/hal"
	"grbl-fans-go/pkg/log"
	"grbl-fans-go/pkg/mcode"
	"grbl-fans-go/pkg/reactor"
	"grbl-fans-go/pkg/spindle"
)

// MachineState is the coarse machine state commands execute under.
type MachineState int

const (
	StateIdle MachineState = iota
	StateRun

	// StateCheckMode is dry-run parsing; command handlers validate
	// but must not execute.
	StateCheckMode
)

// ProgramFlow identifies how a program ended.
type ProgramFlow int

const (
	FlowCompletedM2 ProgramFlow = iota
	FlowCompletedM30
)

// CmdOverrideFan0Toggle is the realtime accessory override that toggles
// fan 0, usable mid-program.
const CmdOverrideFan0Toggle byte = 0x8A

// ReportFlags marks which optional fields the next realtime report
// must include.
type ReportFlags struct {
	Fan bool
}

// Hook signatures. Every handler forwards to the previous one it
// replaced (which may be nil at the end of the chain).
type (
	ProgramCompletedFunc  func(flow ProgramFlow, checkMode bool)
	ResetFunc             func()
	RealtimeReportFunc    func(w hal.StreamWriter, report ReportFlags)
	ReportOptionsFunc     func(w hal.StreamWriter, newOpt bool)
	AccessoryOverrideFunc func(cmd byte)
)

// Host is the single owned instance of the firmware host surface.
type Host struct {
	Reactor  *reactor.Reactor
	Ports    hal.PortPool
	Spindles *spindle.Selector
	Log      *log.Logger

	mu                  sync.Mutex
	state               MachineState
	report              ReportFlags
	mcodeHead           mcode.Handler
	onProgramCompleted  ProgramCompletedFunc
	onReset             ResetFunc
	onRealtimeReport    RealtimeReportFunc
	onReportOptions     ReportOptionsFunc
	onAccessoryOverride AccessoryOverrideFunc
	messageSink         func(msg string)
}

// New assembles a host around its collaborators.
func New(r *reactor.Reactor, ports hal.PortPool, spindles *spindle.Selector, logger *log.Logger) *Host {
	if logger == nil {
		logger = log.Default()
	}
	return &Host{
		Reactor:  r,
		Ports:    ports,
		Spindles: spindles,
		Log:      logger,
	}
}

// State returns the current machine state.
func (h *Host) State() MachineState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetState sets the machine state.
func (h *Host) SetState(s MachineState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// MarkFanReport flags the fan field for inclusion in the next
// realtime report.
func (h *Host) MarkFanReport() {
	h.mu.Lock()
	h.report.Fan = true
	h.mu.Unlock()
}

// InterceptMCode installs a command handler built around the previous
// chain head (which may be nil) and returns nothing; the wrapper owns
// forwarding of unhandled commands.
func (h *Host) InterceptMCode(wrap func(prev mcode.Handler) mcode.Handler) {
	h.mu.Lock()
	h.mcodeHead = wrap(h.mcodeHead)
	h.mu.Unlock()
}

// MCode returns the head of the command handler chain, or nil when no
// handler is installed.
func (h *Host) MCode() mcode.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mcodeHead
}

// InterceptProgramCompleted swaps the program-completed hook,
// returning the previous handler for chaining.
func (h *Host) InterceptProgramCompleted(fn ProgramCompletedFunc) ProgramCompletedFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onProgramCompleted
	h.onProgramCompleted = fn
	return prev
}

// InterceptReset swaps the driver-reset hook.
func (h *Host) InterceptReset(fn ResetFunc) ResetFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onReset
	h.onReset = fn
	return prev
}

// InterceptRealtimeReport swaps the realtime-report hook.
func (h *Host) InterceptRealtimeReport(fn RealtimeReportFunc) RealtimeReportFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onRealtimeReport
	h.onRealtimeReport = fn
	return prev
}

// InterceptReportOptions swaps the options-report hook.
func (h *Host) InterceptReportOptions(fn ReportOptionsFunc) ReportOptionsFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onReportOptions
	h.onReportOptions = fn
	return prev
}

// InterceptAccessoryOverride swaps the accessory-override hook.
func (h *Host) InterceptAccessoryOverride(fn AccessoryOverrideFunc) AccessoryOverrideFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onAccessoryOverride
	h.onAccessoryOverride = fn
	return prev
}

// ProgramCompleted dispatches the program-completed event down the
// hook chain.
func (h *Host) ProgramCompleted(flow ProgramFlow, checkMode bool) {
	h.mu.Lock()
	fn := h.onProgramCompleted
	h.mu.Unlock()
	if fn != nil {
		fn(flow, checkMode)
	}
}

// Reset dispatches a full device reset down the hook chain.
func (h *Host) Reset() {
	h.mu.Lock()
	fn := h.onReset
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// AccessoryOverride dispatches a realtime accessory override command.
func (h *Host) AccessoryOverride(cmd byte) {
	h.mu.Lock()
	fn := h.onAccessoryOverride
	h.mu.Unlock()
	if fn != nil {
		fn(cmd)
	}
}

// RealtimeReport builds one status report line, letting each hooked
// plugin append its fields. Report flags are consumed: the fan field
// is included only when marked since the previous report.
func (h *Host) RealtimeReport() string {
	h.mu.Lock()
	fn := h.onRealtimeReport
	flags := h.report
	h.report = ReportFlags{}
	h.mu.Unlock()

	var sb strings.Builder
	if fn != nil {
		fn(func(s string) { sb.WriteString(s) }, flags)
	}
	return sb.String()
}

// ReportOptions builds the startup/options report, letting each hooked
// plugin append its identification lines.
func (h *Host) ReportOptions(newOpt bool) string {
	h.mu.Lock()
	fn := h.onReportOptions
	h.mu.Unlock()

	var sb strings.Builder
	if fn != nil {
		fn(func(s string) { sb.WriteString(s) }, newOpt)
	}
	return sb.String()
}

// SetMessageSink routes foreground messages (boot warnings and the
// like) to an additional consumer beyond the log.
func (h *Host) SetMessageSink(fn func(msg string)) {
	h.mu.Lock()
	h.messageSink = fn
	h.mu.Unlock()
}

// EnqueueMessage defers a foreground message to the dispatch loop, so
// warnings raised from interrupt-like contexts surface exactly once
// from the protocol loop.
func (h *Host) EnqueueMessage(msg string) {
	deliver := func(float64) {
		h.Log.Warn("%s", msg)
		h.mu.Lock()
		sink := h.messageSink
		h.mu.Unlock()
		if sink != nil {
			sink(msg)
		}
	}
	if h.Reactor != nil {
		h.Reactor.RegisterAsyncCallback(deliver)
		return
	}
	deliver(0)
}
