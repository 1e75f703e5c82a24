package sim

import (
	"testing"

	"fpi2c/frontpanel"
)

func testEndpoints() frontpanel.I2CEndpoints {
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

// loadCommand streams a command buffer into the engine the way the
// controller does: memory pointer reset, then one masked wire write and
// memory-write pulse per byte.
func loadCommand(t *testing.T, e *Engine, eps frontpanel.I2CEndpoints, buf []byte) {
	t.Helper()
	if err := e.PulseTrigger(eps.MemStart.Address, eps.MemStart.Bit); err != nil {
		t.Fatalf("MemStart pulse failed: %v", err)
	}
	for _, b := range buf {
		if err := e.SetWireIn(eps.In.Address, uint32(b)<<eps.In.Bit, 0xFF<<eps.In.Bit); err != nil {
			t.Fatalf("SetWireIn failed: %v", err)
		}
		if err := e.UpdateWireIns(); err != nil {
			t.Fatalf("UpdateWireIns failed: %v", err)
		}
		if err := e.PulseTrigger(eps.MemWrite.Address, eps.MemWrite.Bit); err != nil {
			t.Fatalf("MemWrite pulse failed: %v", err)
		}
	}
}

func TestWriteTransaction(t *testing.T) {
	eps := testEndpoints()
	e := New(eps)
	dev := NewDevice(make([]byte, 32))
	e.AddDevice(0x50, dev)

	// write 0x42 to register 0x10 of device 0xA0:
	// [preambleLen=2, starts=0, stops=1<<2, payloadLen=1, 0xA0, 0x10, 0x42]
	loadCommand(t, e, eps, []byte{0x02, 0x00, 0x04, 0x01, 0xA0, 0x10, 0x42})
	if err := e.PulseTrigger(eps.Start.Address, eps.Start.Bit); err != nil {
		t.Fatalf("Start pulse failed: %v", err)
	}

	if dev.Mem()[0x10] != 0x42 {
		t.Errorf("Expected 0x42 at register 0x10, got 0x%02X", dev.Mem()[0x10])
	}

	// Done must only be visible after the trigger-outs are latched.
	done, err := e.IsTriggered(eps.Done.Address, eps.Done.Mask())
	if err != nil {
		t.Fatalf("IsTriggered failed: %v", err)
	}
	if done {
		t.Error("Done visible before UpdateTriggerOuts")
	}
	if err := e.UpdateTriggerOuts(); err != nil {
		t.Fatalf("UpdateTriggerOuts failed: %v", err)
	}
	done, _ = e.IsTriggered(eps.Done.Address, eps.Done.Mask())
	if !done {
		t.Error("Done not latched after UpdateTriggerOuts")
	}
}

func TestReadTransaction(t *testing.T) {
	eps := testEndpoints()
	e := New(eps)
	mem := make([]byte, 32)
	mem[0x10] = 0x11
	mem[0x11] = 0x22
	e.AddDevice(0x50, NewDevice(mem))

	// repeated-start read of 2 bytes from register 0x10 of device 0xA0,
	// with a start after the register-address byte:
	// [0x83, starts=1<<1, stops=0, n=2, 0xA0, 0x10, 0xA1]
	loadCommand(t, e, eps, []byte{0x83, 0x02, 0x00, 0x02, 0xA0, 0x10, 0xA1})
	if err := e.PulseTrigger(eps.Start.Address, eps.Start.Bit); err != nil {
		t.Fatalf("Start pulse failed: %v", err)
	}

	// Drain via the wire-out path.
	if err := e.PulseTrigger(eps.MemStart.Address, eps.MemStart.Bit); err != nil {
		t.Fatalf("MemStart pulse failed: %v", err)
	}
	var got []byte
	for i := 0; i < 2; i++ {
		v, err := e.GetWireOut(eps.Out.Address)
		if err != nil {
			t.Fatalf("GetWireOut failed: %v", err)
		}
		got = append(got, byte(v>>eps.Out.Bit))
		if err := e.PulseTrigger(eps.MemRead.Address, eps.MemRead.Bit); err != nil {
			t.Fatalf("MemRead pulse failed: %v", err)
		}
	}
	if got[0] != 0x11 || got[1] != 0x22 {
		t.Errorf("Wire drain mismatch: got %#v", got)
	}

	// The same bytes must be available on the pipe path.
	piped, err := e.ReadPipeOut(eps.PipeOut.Address, 2)
	if err != nil {
		t.Fatalf("ReadPipeOut failed: %v", err)
	}
	if len(piped) != 2 || piped[0] != 0x11 || piped[1] != 0x22 {
		t.Errorf("Pipe drain mismatch: got %#v", piped)
	}
}

func TestStopPrecedence(t *testing.T) {
	eps := testEndpoints()
	e := New(eps)

	// The position after byte 0 has both a start and a stop bit: the
	// engine must issue a stop, not a repeated start.
	loadCommand(t, e, eps, []byte{0x03, 0x01, 0x01, 0x00, 0xA0, 0x10, 0x20})
	if err := e.PulseTrigger(eps.Start.Address, eps.Start.Bit); err != nil {
		t.Fatalf("Start pulse failed: %v", err)
	}

	var starts, stops int
	for _, ev := range e.Trace() {
		switch ev.Kind {
		case EventStart:
			starts++
		case EventStop:
			stops++
		}
	}
	if starts != 1 {
		t.Errorf("Expected a single start (transaction open), got %d", starts)
	}
	if stops != 1 {
		t.Errorf("Expected one stop at the contested position, got %d", stops)
	}
}

func TestEngineReset(t *testing.T) {
	eps := testEndpoints()
	e := New(eps)

	loadCommand(t, e, eps, []byte{0x01, 0x00, 0x02, 0x00, 0xA0})
	if err := e.PulseTrigger(eps.Start.Address, eps.Start.Bit); err != nil {
		t.Fatalf("Start pulse failed: %v", err)
	}
	if err := e.PulseTrigger(eps.Reset.Address, eps.Reset.Bit); err != nil {
		t.Fatalf("Reset pulse failed: %v", err)
	}

	if len(e.Trace()) != 0 {
		t.Error("Reset should clear the bus trace")
	}
	if err := e.UpdateTriggerOuts(); err != nil {
		t.Fatalf("UpdateTriggerOuts failed: %v", err)
	}
	done, _ := e.IsTriggered(eps.Done.Address, eps.Done.Mask())
	if done {
		t.Error("Reset should clear the pending done flag")
	}
}
