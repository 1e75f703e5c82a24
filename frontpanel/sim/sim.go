// Package sim provides an in-memory simulation of the FPGA I2C master
// engine behind the frontpanel.Transport interface. It models the command
// memory, the transaction state machine, the latched done flag and both
// readout paths (wire-out register and pipe FIFO), executing transactions
// against simulated I2C slave devices.
//
// The simulation is used by the controller tests and the runnable
// examples; no hardware is required.
package sim

import (
	"fmt"
	"sync"

	"fpi2c/frontpanel"
)

// EventKind classifies one event observed on the simulated bus.
type EventKind int

const (
	// EventStart is a bus START (or repeated START) condition.
	EventStart EventKind = iota
	// EventStop is a bus STOP condition.
	EventStop
	// EventAddress is an address byte clocked out after a START.
	EventAddress
	// EventWrite is a byte written to the addressed device.
	EventWrite
	// EventRead is a byte read from the addressed device.
	EventRead
)

// BusEvent is one entry in the simulated bus trace.
type BusEvent struct {
	Kind EventKind
	Byte byte
}

// Device is a simulated I2C slave: a flat register memory behind an
// auto-incrementing address pointer, the way EEPROMs and most sensors
// behave. The first addrWidth bytes of every write transfer move the
// pointer; the rest are data. Reads stream from the current pointer.
type Device struct {
	mem       []byte
	ptr       int
	addrWidth int

	addrPending int
	addrAccum   int
}

// NewDevice creates a simulated slave with the given register memory and
// a one-byte register address.
func NewDevice(mem []byte) *Device {
	return &Device{mem: mem, addrWidth: 1}
}

// SetAddrWidth sets the number of register-address bytes the device
// consumes at the head of each write transfer (two for large EEPROMs,
// zero for single-register chips).
func (d *Device) SetAddrWidth(n int) {
	if n >= 0 {
		d.addrWidth = n
	}
}

// Mem exposes the device register memory for test setup and inspection.
func (d *Device) Mem() []byte { return d.mem }

// startWrite begins a write transfer; the next addrWidth bytes set the
// register pointer.
func (d *Device) startWrite() {
	d.addrPending = d.addrWidth
	d.addrAccum = 0
}

func (d *Device) busWrite(b byte) {
	if d.addrPending > 0 {
		d.addrAccum = d.addrAccum<<8 | int(b)
		d.addrPending--
		if d.addrPending == 0 && len(d.mem) > 0 {
			d.ptr = d.addrAccum % len(d.mem)
		}
		return
	}
	if len(d.mem) == 0 {
		return
	}
	d.mem[d.ptr%len(d.mem)] = b
	d.ptr++
}

func (d *Device) busRead() byte {
	if len(d.mem) == 0 {
		return 0xFF
	}
	b := d.mem[d.ptr%len(d.mem)]
	d.ptr++
	return b
}

// Engine simulates the fabric-side I2C master engine. It implements
// frontpanel.Transport.
type Engine struct {
	mu  sync.Mutex
	eps frontpanel.I2CEndpoints

	devices map[uint8]*Device

	cmdMem    []byte
	resultMem []byte
	readPtr   int
	pipe      []byte

	staged    map[uint8]uint32 // wire-in values staged by SetWireIn
	committed map[uint8]uint32 // wire-in values visible to the fabric
	pending   uint32           // done events since last UpdateTriggerOuts
	latched   uint32           // done state visible to IsTriggered

	trace []BusEvent
}

var _ frontpanel.Transport = (*Engine)(nil)

// New creates a simulated engine wired to the given endpoint map. The map
// must be the same one handed to the controller, since the engine
// dispatches register traffic by endpoint address and bit index.
func New(eps frontpanel.I2CEndpoints) *Engine {
	return &Engine{
		eps:       eps,
		devices:   make(map[uint8]*Device),
		staged:    make(map[uint8]uint32),
		committed: make(map[uint8]uint32),
	}
}

// AddDevice attaches a simulated slave at a 7-bit address.
func (e *Engine) AddDevice(addr uint8, dev *Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices[addr&0x7F] = dev
}

// Trace returns the bus events recorded since the last engine reset.
func (e *Engine) Trace() []BusEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BusEvent, len(e.trace))
	copy(out, e.trace)
	return out
}

// PulseTrigger dispatches a trigger pulse to the engine block it targets.
func (e *Engine) PulseTrigger(addr, bit uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ep := frontpanel.Endpoint{Address: addr, Bit: bit}
	switch {
	case ep == e.eps.MemStart:
		e.cmdMem = e.cmdMem[:0]
		e.readPtr = 0
	case ep == e.eps.MemWrite:
		wire := e.committed[e.eps.In.Address]
		e.cmdMem = append(e.cmdMem, byte(wire>>e.eps.In.Bit))
	case ep == e.eps.MemRead:
		e.readPtr++
	case ep == e.eps.Start:
		if err := e.execute(); err != nil {
			return err
		}
	case ep == e.eps.Reset:
		e.cmdMem = e.cmdMem[:0]
		e.resultMem = nil
		e.readPtr = 0
		e.pending = 0
		e.latched = 0
		e.trace = nil
	case e.eps.FifoReset != nil && ep == *e.eps.FifoReset:
		e.pipe = nil
	default:
		return fmt.Errorf("sim: pulse on unmapped endpoint 0x%02X bit %d", addr, bit)
	}
	return nil
}

func (e *Engine) SetWireIn(addr uint8, value, mask uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staged[addr] = (e.staged[addr] &^ mask) | (value & mask)
	return nil
}

func (e *Engine) UpdateWireIns() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for addr, v := range e.staged {
		e.committed[addr] = v
	}
	return nil
}

func (e *Engine) UpdateTriggerOuts() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latched = e.pending
	e.pending = 0
	return nil
}

func (e *Engine) IsTriggered(addr uint8, mask uint32) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if addr != e.eps.Done.Address {
		return false, fmt.Errorf("sim: trigger-out read on unmapped endpoint 0x%02X", addr)
	}
	return e.latched&mask != 0, nil
}

func (e *Engine) GetWireOut(addr uint8) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if addr != e.eps.Out.Address {
		return 0, fmt.Errorf("sim: wire-out read on unmapped endpoint 0x%02X", addr)
	}
	if e.readPtr >= len(e.resultMem) {
		return 0, nil
	}
	return uint32(e.resultMem[e.readPtr]) << e.eps.Out.Bit, nil
}

func (e *Engine) ReadPipeOut(addr uint8, n int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eps.PipeOut == nil || addr != e.eps.PipeOut.Address {
		return nil, fmt.Errorf("sim: pipe read on unmapped endpoint 0x%02X", addr)
	}
	if n > len(e.pipe) {
		n = len(e.pipe)
	}
	out := make([]byte, n)
	copy(out, e.pipe[:n])
	e.pipe = e.pipe[n:]
	return out, nil
}

// execute runs one transaction from the command memory, exactly as the
// HDL state machine interprets it: byte 0 carries the preamble length and
// read flag, bytes 1 and 2 the per-position start/stop masks (stop wins
// when both bits are set), byte 3 the payload length.
func (e *Engine) execute() error {
	if len(e.cmdMem) < 4 {
		return fmt.Errorf("sim: start pulsed with only %d bytes in command memory", len(e.cmdMem))
	}

	header := e.cmdMem[0]
	preambleLen := int(header & 0x7F)
	isRead := header&0x80 != 0
	starts := e.cmdMem[1]
	stops := e.cmdMem[2]
	n := int(e.cmdMem[3])

	if len(e.cmdMem) < 4+preambleLen {
		return fmt.Errorf("sim: command memory holds %d bytes, preamble needs %d", len(e.cmdMem), 4+preambleLen)
	}
	preamble := e.cmdMem[4 : 4+preambleLen]
	payload := e.cmdMem[4+preambleLen:]

	var dev *Device
	var reading bool
	addressed := false

	for i, b := range preamble {
		// The engine opens the transaction with a start. After that, mask
		// bit i requests a condition following preamble byte i, so byte
		// i+1 is where a repeated start or stop lands. Stop wins when
		// both bits are set.
		var isStart, isStop bool
		if i == 0 {
			isStart = true
		} else {
			after := byte(1) << (i - 1)
			isStop = stops&after != 0
			isStart = !isStop && starts&after != 0
		}

		if isStop {
			e.trace = append(e.trace, BusEvent{Kind: EventStop})
			addressed = false
		}
		if isStart {
			e.trace = append(e.trace, BusEvent{Kind: EventStart})
			e.trace = append(e.trace, BusEvent{Kind: EventAddress, Byte: b})
			reading = b&1 != 0
			dev = e.devices[b>>1]
			addressed = true
			if dev != nil && !reading {
				dev.startWrite()
			}
			continue
		}

		e.trace = append(e.trace, BusEvent{Kind: EventWrite, Byte: b})
		if addressed && dev != nil && !reading {
			dev.busWrite(b)
		}
	}

	// A stop after the final preamble byte ends the transfer before any
	// payload moves.
	if preambleLen > 0 && stops&(byte(1)<<(preambleLen-1)) != 0 {
		e.trace = append(e.trace, BusEvent{Kind: EventStop})
		addressed = false
	}

	if isRead {
		e.resultMem = make([]byte, 0, n)
		for i := 0; i < n; i++ {
			var b byte = 0xFF
			if addressed && dev != nil && reading {
				b = dev.busRead()
			}
			e.trace = append(e.trace, BusEvent{Kind: EventRead, Byte: b})
			e.resultMem = append(e.resultMem, b)
		}
		e.pipe = append(e.pipe, e.resultMem...)
	} else {
		for i := 0; i < n && i < len(payload); i++ {
			e.trace = append(e.trace, BusEvent{Kind: EventWrite, Byte: payload[i]})
			if addressed && dev != nil && !reading {
				dev.busWrite(payload[i])
			}
		}
	}
	if stops&(byte(1)<<preambleLen) != 0 {
		e.trace = append(e.trace, BusEvent{Kind: EventStop})
	}

	e.pending |= e.eps.Done.Mask()
	return nil
}
