// Package frontpanel defines the narrow register-level interface to the
// FPGA fabric hosting the I2C master engine, and the endpoint map that
// names the engine's wires, triggers and pipes.
//
// The package does not talk to hardware itself. Implementations of
// Transport wrap whatever link carries register traffic to the fabric: a
// vendor API, a serial register bridge (see package bridge), or an
// in-memory simulation (see package sim).
package frontpanel

import "fmt"

// Endpoint identifies one named register, trigger bit or pipe on the
// fabric: an 8-bit endpoint address plus the low bit index of the field
// within the register.
type Endpoint struct {
	Address uint8
	Bit     uint8
}

// Mask returns the single-bit mask for a trigger endpoint.
func (e Endpoint) Mask() uint32 {
	return 1 << e.Bit
}

// Transport is the register-level access the I2C controller needs from the
// fabric. Implementations must serialize register access internally if the
// same transport is shared across controller instances; the controller
// takes no locks of its own.
type Transport interface {
	// PulseTrigger fires a one-shot trigger at the given endpoint bit.
	PulseTrigger(addr, bit uint8) error

	// SetWireIn stages a masked write to a wire-in register. The value is
	// not visible to the fabric until UpdateWireIns commits it.
	SetWireIn(addr uint8, value, mask uint32) error

	// UpdateWireIns commits all staged wire-in writes to the fabric.
	UpdateWireIns() error

	// UpdateTriggerOuts latches the current trigger-out state so that
	// IsTriggered reflects it.
	UpdateTriggerOuts() error

	// IsTriggered reports whether any of the masked bits of a latched
	// trigger-out register fired since the last UpdateTriggerOuts.
	IsTriggered(addr uint8, mask uint32) (bool, error)

	// GetWireOut reads the current value of a wire-out register.
	GetWireOut(addr uint8) (uint32, error)

	// ReadPipeOut drains n bytes from a pipe-out FIFO.
	ReadPipeOut(addr uint8, n int) ([]byte, error)
}

// I2CEndpoints names every fabric endpoint the I2C engine exposes. The
// first eight are required for any controller; FifoReset and PipeOut are
// only needed for pipe-mode reads and may be left nil when the bitfile
// does not route the I2C FIFO to a pipe.
type I2CEndpoints struct {
	MemStart Endpoint // trigger: reset the command memory pointer
	MemWrite Endpoint // trigger: advance the command memory write pointer
	MemRead  Endpoint // trigger: advance the result memory read pointer
	In       Endpoint // wire-in: command memory input byte
	Out      Endpoint // wire-out: result memory output byte
	Start    Endpoint // trigger: start the transaction state machine
	Done     Endpoint // trigger-out: transaction complete
	Reset    Endpoint // trigger: reset the I2C engine

	FifoReset *Endpoint // trigger: flush the pipe FIFO (optional)
	PipeOut   *Endpoint // pipe-out: bulk result readout (optional)
}

// Validate checks that all required endpoints are populated. An endpoint
// with a zero address and zero bit index is treated as missing, so maps
// loaded from configuration fail loudly at construction instead of
// pulsing endpoint 0 at run time.
func (e *I2CEndpoints) Validate() error {
	required := []struct {
		name string
		ep   Endpoint
	}{
		{"MEMSTART", e.MemStart},
		{"MEMWRITE", e.MemWrite},
		{"MEMREAD", e.MemRead},
		{"IN", e.In},
		{"OUT", e.Out},
		{"START", e.Start},
		{"DONE", e.Done},
		{"RESET", e.Reset},
	}
	for _, r := range required {
		if r.ep == (Endpoint{}) {
			return fmt.Errorf("endpoint map: required endpoint %s is not set", r.name)
		}
	}
	return nil
}
