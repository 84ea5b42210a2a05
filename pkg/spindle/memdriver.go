package spindle

import "sync"

// MemDriver is an in-memory spindle used by the simulator and tests.
type MemDriver struct {
	name string

	mu    sync.Mutex
	state State
	sets  int
}

// NewMemDriver creates a stopped in-memory spindle.
func NewMemDriver(name string) *MemDriver {
	return &MemDriver{name: name}
}

func (d *MemDriver) Name() string {
	return d.name
}

func (d *MemDriver) SetState(s State) {
	d.mu.Lock()
	d.state = s
	d.sets++
	d.mu.Unlock()
}

func (d *MemDriver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetCalls returns how many times SetState reached the hardware.
func (d *MemDriver) SetCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sets
}
