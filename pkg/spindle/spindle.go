// Package spindle models the active spindle driver and its state-set
// entry point. Plugins intercept state changes by wrapping the entry
// point of the currently selected spindle; every wrapper forwards to
// the one it replaced so the hardware action still happens.
package spindle

import "sync"

// State is the commanded spindle state.
type State struct {
	On  bool
	CCW bool
	RPM float64
}

// Driver is a concrete spindle implementation.
type Driver interface {
	Name() string
	SetState(s State)
	State() State
}

// StateFunc is the state-set entry point signature interceptors wrap.
type StateFunc func(s State)

// Selected is the active spindle with its interceptor chain.
type Selected struct {
	driver Driver

	mu       sync.Mutex
	setState StateFunc
}

// Driver returns the underlying driver.
func (a *Selected) Driver() Driver {
	return a.driver
}

// SetState runs the full interceptor chain ending at the driver.
func (a *Selected) SetState(s State) {
	a.mu.Lock()
	fn := a.setState
	a.mu.Unlock()
	fn(s)
}

// DriveRaw bypasses the interceptor chain and drives the hardware
// directly. Used when another output mirrors the spindle's enable line
// and must not re-trigger the chain.
func (a *Selected) DriveRaw(s State) {
	a.driver.SetState(s)
}

// Intercept installs a wrapper around the current entry point. The
// wrapper receives the previous entry point and must forward to it.
func (a *Selected) Intercept(wrap func(next StateFunc) StateFunc) {
	a.mu.Lock()
	a.setState = wrap(a.setState)
	a.mu.Unlock()
}

// Selector tracks the active spindle and notifies observers when a
// spindle is (re-)selected, so they can re-install their interceptors.
type Selector struct {
	mu        sync.Mutex
	active    *Selected
	observers []func(*Selected)
}

// NewSelector creates a selector with no active spindle.
func NewSelector() *Selector {
	return &Selector{}
}

// Select makes d the active spindle and rebuilds its interceptor chain
// by notifying every observer, in registration order.
func (s *Selector) Select(d Driver) *Selected {
	active := &Selected{driver: d, setState: d.SetState}
	s.mu.Lock()
	s.active = active
	observers := make([]func(*Selected), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(active)
	}
	return active
}

// Active returns the selected spindle, or nil before any selection.
func (s *Selector) Active() *Selected {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnSelect registers an observer for future selections. If a spindle
// is already active, the observer is invoked for it immediately.
func (s *Selector) OnSelect(fn func(*Selected)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	active := s.active
	s.mu.Unlock()
	if active != nil {
		fn(active)
	}
}
