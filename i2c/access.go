package i2c

// High-level byte-addressable chip access. devAddr is the full 8-bit
// address byte (R/W bit space); the R/W bit is set and cleared here, so
// callers pass the same value for reads and writes.

import "context"

// readOptions carries the receive-side knobs of a long-form read.
type readOptions struct {
	mode      TransferMode
	resetPipe bool
	readout   bool
}

// ReadOption adjusts how a long-form Read drains its data.
type ReadOption func(*readOptions)

// ViaPipe drains the read through the pipe-out FIFO instead of the
// wire-out register. resetPipe flushes the FIFO before the transaction.
func ViaPipe(resetPipe bool) ReadOption {
	return func(o *readOptions) {
		o.mode = TransferPipe
		o.resetPipe = resetPipe
	}
}

// NoReadout makes Read wait for transaction completion without draining
// any data; the result slice is nil. The data stays in the engine for a
// later drain.
func NoReadout() ReadOption {
	return func(o *readOptions) {
		o.readout = false
	}
}

// Write sends data to regAddr on devAddr. The preamble is the device
// address with the write bit cleared followed by the register address
// bytes, with a stop after the full preamble. regAddr may be nil for
// single-register chips.
func (c *Controller) Write(ctx context.Context, devAddr uint8, regAddr []byte, data []byte) error {
	preamble := make([]byte, 0, 1+len(regAddr))
	preamble = append(preamble, devAddr&0xFE)
	preamble = append(preamble, regAddr...)

	if err := c.Configure(0x00, byte(1)<<len(preamble), preamble); err != nil {
		return err
	}
	return c.Transmit(ctx, data)
}

// Read reads n bytes from regAddr on devAddr using the standard
// repeated-start sequence:
//
//	START devAddr(W) regAddr... START devAddr(R) data...
//
// With a nil regAddr the device is addressed directly with the read bit
// set and no start mask is needed. By default data is drained through the
// wire-out register; see ViaPipe and NoReadout.
func (c *Controller) Read(ctx context.Context, devAddr uint8, regAddr []byte, n int, opts ...ReadOption) ([]byte, error) {
	o := readOptions{mode: TransferWire, readout: true}
	for _, opt := range opts {
		opt(&o)
	}

	if len(regAddr) == 0 {
		if err := c.Configure(0x00, 0x00, []byte{devAddr | 0x01}); err != nil {
			return nil, err
		}
	} else {
		preamble := make([]byte, 0, 2+len(regAddr))
		preamble = append(preamble, devAddr&0xFE)
		preamble = append(preamble, regAddr...)
		preamble = append(preamble, devAddr|0x01)

		// A start right before the repeated, read-flagged address byte.
		if err := c.Configure(byte(1)<<len(regAddr), 0x00, preamble); err != nil {
			return nil, err
		}
	}

	return c.Receive(ctx, n, o.mode, o.resetPipe, o.readout)
}
