// Package mcode defines the user M-code surface: command blocks, the
// chained handler contract and the dispatch helper.
//
// Handlers compose chain-of-responsibility style: each handler is
// constructed around the previously installed one and passes every
// command it does not recognize to that handler unchanged.
package mcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"grbl-fans-go/pkg/status"
)

// Code is a user M-code number.
type Code int

const (
	CodeNone Code = 0

	// FanOn / FanOff are the fan control commands (M106/M107).
	FanOn  Code = 106
	FanOff Code = 107
)

// Block is one parsed user M-code command. Word values keep their raw
// float form so validators can distinguish malformed numbers (NaN)
// from out-of-range ones.
type Block struct {
	Code Code

	// HasP reports whether the optional P word was present.
	HasP bool

	// P is the P word value; NaN when the word was malformed.
	P float64
}

// Handler validates and executes user M-codes. Implementations wrap
// the previous chain head and forward unrecognized codes to it.
type Handler interface {
	// Check reports whether this handler, or anything behind it in
	// the chain, recognizes the code.
	Check(c Code) bool

	// Validate pre-checks a block without side effects. Returns
	// status.Unhandled for codes the chain does not recognize.
	Validate(b *Block) status.Code

	// Execute runs a validated block. checkMode suppresses all side
	// effects (dry-run parsing).
	Execute(checkMode bool, b *Block)
}

// Dispatch runs a block through a handler chain: check, validate,
// execute. Returns the validation status; execution only happens on
// status.OK.
func Dispatch(h Handler, checkMode bool, b *Block) status.Code {
	if h == nil || !h.Check(b.Code) {
		return status.Unhandled
	}
	if st := h.Validate(b); st != status.OK {
		return st
	}
	h.Execute(checkMode, b)
	return status.OK
}

// ParseLine parses a single "M<code> [P<value>]" command line.
// A malformed P number is preserved as NaN so validation can reject it
// with the proper status code. Returns an error only for lines that
// are not user M-code commands at all.
func ParseLine(line string) (*Block, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, fmt.Errorf("mcode: empty line")
	}
	head := strings.ToUpper(fields[0])
	if len(head) < 2 || head[0] != 'M' {
		return nil, fmt.Errorf("mcode: not an M-code command: %q", line)
	}
	num, err := strconv.Atoi(head[1:])
	if err != nil || num < 0 {
		return nil, fmt.Errorf("mcode: bad command word: %q", head)
	}

	b := &Block{Code: Code(num)}
	for _, f := range fields[1:] {
		if len(f) < 1 {
			continue
		}
		letter := strings.ToUpper(f[:1])
		if letter != "P" {
			continue
		}
		b.HasP = true
		v, err := strconv.ParseFloat(f[1:], 64)
		if err != nil {
			b.P = math.NaN()
		} else {
			b.P = v
		}
	}
	return b, nil
}
