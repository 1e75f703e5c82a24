// Package bridge implements frontpanel.Transport over a serial link to a
// small MCU that forwards register traffic to the FPGA fabric. Each
// transport call is one CRC-protected request/response frame exchange;
// boards without a vendor host API expose their register file this way
// over a USB CDC port.
package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"fpi2c/frontpanel"
)

// maxPipeChunk bounds how much pipe data one response frame can carry.
const maxPipeChunk = 240

// Bridge speaks the register frame protocol over a serial link. It
// serializes frame exchanges internally, so several controllers can share
// one Bridge.
type Bridge struct {
	mu  sync.Mutex
	rw  io.ReadWriter
	rx  *FifoBuffer
	log logrus.FieldLogger
}

var _ frontpanel.Transport = (*Bridge)(nil)

// New creates a Bridge over an open link. Pass a Port from OpenPort for
// real hardware, or any io.ReadWriter loopback for tests.
func New(rw io.ReadWriter, logger logrus.FieldLogger) *Bridge {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Bridge{
		rw:  rw,
		rx:  NewFifoBuffer(2 * frameLenMax),
		log: logger,
	}
}

// Open opens the serial device from cfg and returns a Bridge over it.
func Open(cfg *Config, logger logrus.FieldLogger) (*Bridge, io.Closer, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, nil, err
	}
	return New(port, logger), port, nil
}

// exchange sends one request frame and blocks until the matching response
// frame arrives or the link errors out.
func (b *Bridge) exchange(op byte, payload []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame, err := encodeFrame(op, payload)
	if err != nil {
		return nil, err
	}

	// Leftover receive bytes from an aborted exchange would pair the wrong
	// response with this request; drop them before sending.
	if !b.rx.IsEmpty() {
		b.log.WithField("bytes", b.rx.Available()).Debug("bridge discarding stale receive data")
		b.rx.Reset()
	}

	if _, err := b.rw.Write(frame); err != nil {
		return nil, fmt.Errorf("bridge: write frame: %w", err)
	}

	respOp, respPayload, err := b.readFrame()
	if err != nil {
		return nil, err
	}
	if respOp != op|respFlag {
		return nil, fmt.Errorf("bridge: response opcode 0x%02X does not match request 0x%02X", respOp, op)
	}
	if len(respPayload) < 1 {
		return nil, fmt.Errorf("bridge: response carries no status byte")
	}
	if status := respPayload[0]; status != statusOK {
		return nil, fmt.Errorf("bridge: device rejected op 0x%02X with status 0x%02X", op, status)
	}
	return respPayload[1:], nil
}

// readFrame accumulates serial fragments until one whole frame is parsed.
// Garbage before a plausible frame is skipped by hunting for the next
// sync byte.
func (b *Bridge) readFrame() (byte, []byte, error) {
	chunk := make([]byte, 64)
	for {
		data := b.rx.Data()
		for len(data) > 0 {
			frameLen := int(data[0])
			if frameLen < frameLenMin {
				// Not a length byte; resync at the next sync byte.
				b.log.WithField("byte", fmt.Sprintf("0x%02X", data[0])).Debug("bridge resync")
				skip := 1
				for skip < len(data) && data[skip-1] != syncByte {
					skip++
				}
				b.rx.Pop(skip)
				data = data[skip:]
				continue
			}
			if len(data) < frameLen {
				break // wait for the rest of the frame
			}
			op, payload, err := decodeFrame(data[:frameLen])
			b.rx.Pop(frameLen)
			if err != nil {
				return 0, nil, err
			}
			out := make([]byte, len(payload))
			copy(out, payload)
			return op, out, nil
		}

		n, err := b.rw.Read(chunk)
		if err != nil {
			return 0, nil, fmt.Errorf("bridge: read frame: %w", err)
		}
		if n == 0 {
			return 0, nil, fmt.Errorf("bridge: link timed out waiting for response")
		}
		if b.rx.Free() < n {
			return 0, nil, fmt.Errorf("bridge: receive buffer overflow")
		}
		b.rx.Write(chunk[:n])
	}
}

func (b *Bridge) PulseTrigger(addr, bit uint8) error {
	_, err := b.exchange(opPulseTrigger, pulsePayload(addr, bit))
	return err
}

func (b *Bridge) SetWireIn(addr uint8, value, mask uint32) error {
	_, err := b.exchange(opSetWireIn, setWirePayload(addr, value, mask))
	return err
}

func (b *Bridge) UpdateWireIns() error {
	_, err := b.exchange(opUpdateWireIns, nil)
	return err
}

func (b *Bridge) UpdateTriggerOuts() error {
	_, err := b.exchange(opUpdateTriggerOuts, nil)
	return err
}

func (b *Bridge) IsTriggered(addr uint8, mask uint32) (bool, error) {
	resp, err := b.exchange(opIsTriggered, isTriggeredPayload(addr, mask))
	if err != nil {
		return false, err
	}
	if len(resp) != 1 {
		return false, fmt.Errorf("bridge: trigger response of %d bytes, expected 1", len(resp))
	}
	return resp[0] != 0, nil
}

func (b *Bridge) GetWireOut(addr uint8) (uint32, error) {
	resp, err := b.exchange(opGetWireOut, []byte{addr})
	if err != nil {
		return 0, err
	}
	if len(resp) != 4 {
		return 0, fmt.Errorf("bridge: wire-out response of %d bytes, expected 4", len(resp))
	}
	return binary.BigEndian.Uint32(resp), nil
}

func (b *Bridge) ReadPipeOut(addr uint8, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := n - len(out)
		if chunk > maxPipeChunk {
			chunk = maxPipeChunk
		}
		resp, err := b.exchange(opReadPipeOut, readPipePayload(addr, chunk))
		if err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			break // FIFO drained early; let the caller decide
		}
		out = append(out, resp...)
	}
	return out, nil
}
