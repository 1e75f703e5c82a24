package i2c

// Register bit-field access on top of the long-form transactions. Chips
// expose named fields that occupy a bit range inside one or more
// consecutive registers; reads extract the field, writes read-modify-write
// so sibling fields in the same registers are preserved.

import (
	"context"
	"fmt"
)

// ByteOrder is the order device registers present multi-byte values in.
type ByteOrder int

const (
	// MSBFirst assembles the first byte read as the most significant.
	MSBFirst ByteOrder = iota
	// LSBFirst assembles the first byte read as the least significant.
	LSBFirst
)

// Field names a bit range within a device register.
type Field struct {
	// Reg is the register address bytes as sent on the bus.
	Reg []byte
	// Low and High are the inclusive bit indexes of the field within the
	// register value, counted from bit 0 of the register.
	Low, High uint8
}

// width returns the number of register bytes the field spans.
func (f Field) width() int {
	return int(f.High)/8 + 1
}

func (f Field) mask() uint32 {
	var m uint32
	for bit := f.Low; bit <= f.High; bit++ {
		m |= 1 << bit
	}
	return m
}

func (c *Controller) assemble(raw []byte) uint32 {
	var v uint32
	if c.cfg.ByteOrder == LSBFirst {
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | uint32(raw[i])
		}
	} else {
		for _, b := range raw {
			v = v<<8 | uint32(b)
		}
	}
	return v
}

func (c *Controller) split(v uint32, n int) []byte {
	raw := make([]byte, n)
	for i := 0; i < n; i++ {
		if c.cfg.ByteOrder == LSBFirst {
			raw[i] = byte(v >> (8 * i))
		} else {
			raw[i] = byte(v >> (8 * (n - 1 - i)))
		}
	}
	return raw
}

// ReadField reads the registers backing the field and extracts its value.
func (c *Controller) ReadField(ctx context.Context, devAddr uint8, f Field) (uint32, error) {
	if f.High < f.Low || f.High > 31 {
		return 0, fmt.Errorf("i2c: invalid field bit range [%d,%d]", f.Low, f.High)
	}

	raw, err := c.Read(ctx, devAddr, f.Reg, f.width())
	if err != nil {
		return 0, err
	}
	return (c.assemble(raw) & f.mask()) >> f.Low, nil
}

// WriteField sets the field to value, preserving the other bits of the
// backing registers via a read-modify-write cycle.
func (c *Controller) WriteField(ctx context.Context, devAddr uint8, f Field, value uint32) error {
	if f.High < f.Low || f.High > 31 {
		return fmt.Errorf("i2c: invalid field bit range [%d,%d]", f.Low, f.High)
	}

	raw, err := c.Read(ctx, devAddr, f.Reg, f.width())
	if err != nil {
		return fmt.Errorf("read-modify-write readback: %w", err)
	}

	mask := f.mask()
	v := (c.assemble(raw) &^ mask) | (value << f.Low & mask)
	return c.Write(ctx, devAddr, f.Reg, c.split(v, f.width()))
}
