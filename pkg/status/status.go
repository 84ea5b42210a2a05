// Package status defines the status codes surfaced by command-layer
// operations, mirroring the codes the firmware protocol reports to senders.
package status

import "fmt"

// Code is a protocol-level status code. Zero means success.
type Code int

const (
	// OK indicates the operation completed.
	OK Code = iota

	// Unhandled indicates the command was not recognized by the handler;
	// the caller should pass it on to the next handler in the chain.
	Unhandled

	// BadNumberFormat indicates a command word holds a malformed number.
	BadNumberFormat

	// GcodeValueOutOfRange indicates a command word value is outside the
	// permitted range for its command.
	GcodeValueOutOfRange

	// InvalidStatement indicates a command that cannot be executed in the
	// current machine state.
	InvalidStatement

	// SettingDisabled indicates a write to a setting that is not available
	// in the current configuration.
	SettingDisabled

	// SettingValueOutOfRange indicates a setting write outside the
	// setting's declared bounds.
	SettingValueOutOfRange
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Unhandled:
		return "unhandled"
	case BadNumberFormat:
		return "bad number format"
	case GcodeValueOutOfRange:
		return "value out of range"
	case InvalidStatement:
		return "invalid statement"
	case SettingDisabled:
		return "setting disabled"
	case SettingValueOutOfRange:
		return "setting value out of range"
	}
	return fmt.Sprintf("status(%d)", int(c))
}

// Err returns nil for OK and a *Error carrying the code otherwise.
func (c Code) Err() error {
	if c == OK {
		return nil
	}
	return &Error{Code: c}
}

// Error wraps a non-OK Code as a Go error.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return "status: " + e.Code.String()
}

// CodeOf extracts the Code from an error produced by Err.
// Returns OK for nil and Unhandled for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return Unhandled
}
