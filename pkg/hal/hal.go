// Package hal defines the hardware abstraction contracts the host and
// its plugins program against: the shared digital output port pool and
// the stream writer used for protocol reports.
package hal

// Port identifies one digital output in the shared port pool.
type Port uint8

// PortNone is the "unassigned" sentinel. It is a distinct value, not
// port 0; port 0 is a real claimable output.
const PortNone Port = 0xFF

// Valid reports whether p names a real port.
func (p Port) Valid() bool {
	return p != PortNone
}

// PortPool is the shared pool of digital outputs. Ports are claimed
// exclusively at boot by plugins; there is no runtime release. Writes
// to claimed ports are fast, bounded operations.
type PortPool interface {
	// NumDigitalOut returns the number of digital outputs in the pool.
	NumDigitalOut() int

	// ClaimOutput claims the port exclusively, labeling it for
	// diagnostics. Returns false if the port is out of range or
	// already claimed.
	ClaimOutput(port Port, label string) bool

	// DigitalOut drives a claimed port. Writes to unclaimed or
	// out-of-range ports are ignored.
	DigitalOut(port Port, on bool)
}

// StreamWriter appends a fragment to the protocol output stream.
type StreamWriter func(s string)
