// M106/M107 command handling
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import (
	"math"

	"grbl-fans-go/pkg/mcode"
	"grbl-fans-go/pkg/status"
)

// mcodeHandler intercepts the two fan commands and forwards everything
// else to the previously installed chain.
type mcodeHandler struct {
	sub  *Subsystem
	next mcode.Handler
}

func (s *Subsystem) newMCodeHandler(prev mcode.Handler) mcode.Handler {
	return &mcodeHandler{sub: s, next: prev}
}

func (h *mcodeHandler) Check(c mcode.Code) bool {
	if c == mcode.FanOn || c == mcode.FanOff {
		return true
	}
	return h.next != nil && h.next.Check(c)
}

// Validate pre-checks the optional P word naming the target fan. Pure:
// no state is touched.
func (h *mcodeHandler) Validate(b *mcode.Block) status.Code {
	switch b.Code {
	case mcode.FanOn, mcode.FanOff:
		if !b.HasP {
			return status.OK
		}
		if math.IsNaN(b.P) {
			return status.BadNumberFormat
		}
		if b.P != math.Trunc(b.P) || b.P < 0 || int(b.P) >= h.sub.n {
			return status.GcodeValueOutOfRange
		}
		if !h.sub.assigned(int(b.P)) {
			return status.GcodeValueOutOfRange
		}
		return status.OK
	}
	if h.next != nil {
		return h.next.Validate(b)
	}
	return status.Unhandled
}

func (h *mcodeHandler) Execute(checkMode bool, b *mcode.Block) {
	switch b.Code {
	case mcode.FanOn, mcode.FanOff:
		if checkMode {
			return
		}
		fan := 0
		if b.HasP {
			fan = int(b.P)
		}
		if b.Code == mcode.FanOn {
			h.sub.SetState(fan, true)
		} else {
			if fan == 0 {
				h.sub.shutoff.Cancel()
			}
			h.sub.SetState(fan, false)
		}
		return
	}
	if h.next != nil {
		h.next.Execute(checkMode, b)
	}
}
