package i2c

import (
	"bytes"
	"context"
	"testing"

	"fpi2c/frontpanel"
	"fpi2c/frontpanel/sim"
)

func simEndpoints() frontpanel.I2CEndpoints {
	return frontpanel.I2CEndpoints{
		MemStart:  frontpanel.Endpoint{Address: 0x40, Bit: 0},
		MemWrite:  frontpanel.Endpoint{Address: 0x40, Bit: 1},
		MemRead:   frontpanel.Endpoint{Address: 0x40, Bit: 2},
		In:        frontpanel.Endpoint{Address: 0x01, Bit: 0},
		Out:       frontpanel.Endpoint{Address: 0x21, Bit: 0},
		Start:     frontpanel.Endpoint{Address: 0x40, Bit: 3},
		Done:      frontpanel.Endpoint{Address: 0x60, Bit: 0},
		Reset:     frontpanel.Endpoint{Address: 0x40, Bit: 4},
		FifoReset: &frontpanel.Endpoint{Address: 0x40, Bit: 5},
		PipeOut:   &frontpanel.Endpoint{Address: 0xA0, Bit: 0},
	}
}

func newSimController(t *testing.T, opts ...Option) (*Controller, *sim.Engine) {
	t.Helper()
	eps := simEndpoints()
	engine := sim.New(eps)
	c, err := New(engine, eps, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, engine
}

func TestRoundTripThroughEngine(t *testing.T) {
	c, engine := newSimController(t)
	engine.AddDevice(0x50, sim.NewDevice(make([]byte, 64)))
	ctx := context.Background()

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := c.Write(ctx, 0xA0, []byte{0x20}, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := c.Read(ctx, 0xA0, []byte{0x20}, len(payload))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Round trip mismatch: wrote %#v, read %#v", payload, got)
	}
}

func TestPipeRoundTripThroughEngine(t *testing.T) {
	c, engine := newSimController(t)
	mem := make([]byte, 256)
	for i := range mem {
		mem[i] = byte(i)
	}
	engine.AddDevice(0x50, sim.NewDevice(mem))

	got, err := c.Read(context.Background(), 0xA0, []byte{0x00}, 128, ViaPipe(true))
	if err != nil {
		t.Fatalf("Pipe read failed: %v", err)
	}
	if len(got) != 128 {
		t.Fatalf("Expected 128 bytes, got %d", len(got))
	}
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("Pipe byte %d: expected 0x%02X, got 0x%02X", i, i, b)
		}
	}
}

func TestBusTxWriteRead(t *testing.T) {
	c, engine := newSimController(t)
	dev := sim.NewDevice(make([]byte, 32))
	dev.Mem()[0x08] = 0x7B
	engine.AddDevice(0x50, dev)

	bus := c.Bus()

	// Register read: write of the register address, then read.
	r := make([]byte, 1)
	if err := bus.Tx(0x50, []byte{0x08}, r); err != nil {
		t.Fatalf("Tx read failed: %v", err)
	}
	if r[0] != 0x7B {
		t.Errorf("Expected 0x7B, got 0x%02X", r[0])
	}

	// Plain write: register address and value in one write transfer.
	if err := bus.Tx(0x50, []byte{0x09, 0x33}, nil); err != nil {
		t.Fatalf("Tx write failed: %v", err)
	}
	if dev.Mem()[0x09] != 0x33 {
		t.Errorf("Expected 0x33 at register 0x09, got 0x%02X", dev.Mem()[0x09])
	}
}

func TestBusTxRegAddrTooLong(t *testing.T) {
	c, _ := newSimController(t)
	if err := c.Bus().Tx(0x50, make([]byte, 6), make([]byte, 1)); err == nil {
		t.Fatal("Expected error for register address exceeding the preamble budget")
	}
}
