//go:build linux

// GPIO character device backed port pool.
//
// Drives the fan outputs through the Linux gpiocdev interface; each
// pool port maps to one line offset on the configured chip.

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"grbl-fans-go/pkg/hal"
)

// PortPool implements hal.PortPool on top of a GPIO character device.
// Lines are requested lazily at claim time so unclaimed offsets stay
// free for other consumers.
type PortPool struct {
	mu       sync.Mutex
	chip     *gpiocdev.Chip
	consumer string
	offsets  []int
	lines    []*gpiocdev.Line
}

// Open opens the chip (e.g. "/dev/gpiochip0") and maps the given line
// offsets as pool ports 0..len(offsets)-1.
func Open(chipPath, consumer string, offsets []int) (*PortPool, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("gpio: no line offsets configured")
	}
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", chipPath, err)
	}
	return &PortPool{
		chip:     chip,
		consumer: consumer,
		offsets:  offsets,
		lines:    make([]*gpiocdev.Line, len(offsets)),
	}, nil
}

func (p *PortPool) NumDigitalOut() int {
	return len(p.offsets)
}

func (p *PortPool) ClaimOutput(port hal.Port, label string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(port)
	if !port.Valid() || i >= len(p.offsets) || p.lines[i] != nil {
		return false
	}
	consumer := p.consumer
	if label != "" {
		consumer = p.consumer + ":" + label
	}
	line, err := p.chip.RequestLine(p.offsets[i],
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return false
	}
	p.lines[i] = line
	return true
}

func (p *PortPool) DigitalOut(port hal.Port, on bool) {
	p.mu.Lock()
	line := (*gpiocdev.Line)(nil)
	if i := int(port); port.Valid() && i < len(p.lines) {
		line = p.lines[i]
	}
	p.mu.Unlock()
	if line == nil {
		return
	}
	v := 0
	if on {
		v = 1
	}
	line.SetValue(v)
}

// Close drives all claimed lines low and releases them.
func (p *PortPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for i, line := range p.lines {
		if line == nil {
			continue
		}
		line.SetValue(0)
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.lines[i] = nil
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.chip = nil
	}
	return firstErr
}
