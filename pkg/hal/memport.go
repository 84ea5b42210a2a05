package hal

import "sync"

// MemPortPool is an in-memory PortPool used by the simulator and by
// tests. It tracks claims, labels and output levels.
type MemPortPool struct {
	mu     sync.Mutex
	levels []bool
	labels []string
	owned  []bool
}

// NewMemPortPool creates a pool with n digital outputs, all low.
func NewMemPortPool(n int) *MemPortPool {
	return &MemPortPool{
		levels: make([]bool, n),
		labels: make([]string, n),
		owned:  make([]bool, n),
	}
}

func (p *MemPortPool) NumDigitalOut() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.levels)
}

func (p *MemPortPool) ClaimOutput(port Port, label string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	if !port.Valid() || i >= len(p.levels) || p.owned[i] {
		return false
	}
	p.owned[i] = true
	p.labels[i] = label
	return true
}

func (p *MemPortPool) DigitalOut(port Port, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	if !port.Valid() || i >= len(p.levels) || !p.owned[i] {
		return
	}
	p.levels[i] = on
}

// Level returns the current output level of a port.
func (p *MemPortPool) Level(port Port) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	if !port.Valid() || i >= len(p.levels) {
		return false
	}
	return p.levels[i]
}

// Label returns the claim label of a port, or "" if unclaimed.
func (p *MemPortPool) Label(port Port) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	if !port.Valid() || i >= len(p.labels) {
		return ""
	}
	return p.labels[i]
}

// Claimed reports whether a port has been claimed.
func (p *MemPortPool) Claimed(port Port) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	return port.Valid() && i < len(p.owned) && p.owned[i]
}
