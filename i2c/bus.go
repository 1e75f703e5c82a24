package i2c

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// Bus adapts a Controller to the TinyGo drivers I2C interface, so stock
// chip drivers written against drivers.I2C run unchanged over the FPGA
// engine. Tx must be safe for concurrent use, so the adapter serializes
// transactions with a mutex; the underlying Controller stays lock-free.
type Bus struct {
	mu   sync.Mutex
	ctrl *Controller
}

var _ drivers.I2C = (*Bus)(nil)

// Bus returns a drivers.I2C view of the controller.
func (c *Controller) Bus() *Bus {
	return &Bus{ctrl: c}
}

// Tx performs a write then a read transfer against the 7-bit address addr.
// A write-plus-read pair maps onto the repeated-start register read the
// engine implements natively, with w as the register address bytes.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	devAddr := uint8(addr << 1)
	ctx := context.Background()

	switch {
	case len(r) == 0 && len(w) == 0:
		return nil
	case len(r) == 0:
		return b.ctrl.Write(ctx, devAddr, nil, w)
	default:
		if len(w) > 0 && len(w) > maxTxRegAddr {
			return fmt.Errorf("i2c: register address of %d bytes does not fit the engine preamble", len(w))
		}
		data, err := b.ctrl.Read(ctx, devAddr, w, len(r))
		if err != nil {
			return err
		}
		copy(r, data)
		return nil
	}
}

// The repeated-start preamble holds two address bytes plus the register
// address, bounded by the engine's preamble limit.
const maxTxRegAddr = 5
