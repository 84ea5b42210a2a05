//go:build !linux

package gpio

import (
	"fmt"
	"runtime"

	"grbl-fans-go/pkg/hal"
)

// PortPool is unavailable off Linux; Open always fails. The stub keeps
// the hal.PortPool surface so callers compile everywhere.
type PortPool struct{}

func Open(chipPath, consumer string, offsets []int) (*PortPool, error) {
	return nil, fmt.Errorf("gpio: character device not supported on %s", runtime.GOOS)
}

func (p *PortPool) NumDigitalOut() int { return 0 }

func (p *PortPool) ClaimOutput(port hal.Port, label string) bool { return false }

func (p *PortPool) DigitalOut(port hal.Port, on bool) {}

func (p *PortPool) Close() error { return nil }
