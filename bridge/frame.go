package bridge

import (
	"encoding/binary"
	"fmt"
)

// Frame layout on the serial link, in both directions:
//
//	[LEN][OP][PAYLOAD...][CRC_H][CRC_L][SYNC]
//
// LEN counts the whole frame including itself and the trailing sync byte.
// The CRC covers LEN, OP and the payload. Responses echo the request
// opcode with the high bit set and carry a status byte ahead of any data.
const (
	frameOverhead = 5 // len + op + crc(2) + sync
	frameLenMin   = frameOverhead
	frameLenMax   = 255

	syncByte = 0x7E

	respFlag = 0x80
)

// Register operation opcodes understood by the bridge MCU.
const (
	opPulseTrigger      = 0x01
	opSetWireIn         = 0x02
	opUpdateWireIns     = 0x03
	opUpdateTriggerOuts = 0x04
	opIsTriggered       = 0x05
	opGetWireOut        = 0x06
	opReadPipeOut       = 0x07
)

// Response status codes.
const (
	statusOK         = 0x00
	statusBadOp      = 0x01
	statusBadAddress = 0x02
)

// encodeFrame builds a complete frame for op with the given payload.
func encodeFrame(op byte, payload []byte) ([]byte, error) {
	total := frameOverhead + len(payload)
	if total > frameLenMax {
		return nil, fmt.Errorf("bridge: frame payload of %d bytes exceeds frame size limit", len(payload))
	}

	frame := make([]byte, 0, total)
	frame = append(frame, byte(total), op)
	frame = append(frame, payload...)

	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc))
	frame = append(frame, syncByte)
	return frame, nil
}

// decodeFrame validates one complete frame and returns its opcode and
// payload. The input must hold exactly the frame (length prefix already
// used to slice it out of the stream).
func decodeFrame(frame []byte) (byte, []byte, error) {
	if len(frame) < frameLenMin {
		return 0, nil, fmt.Errorf("bridge: frame of %d bytes is below minimum %d", len(frame), frameLenMin)
	}
	if int(frame[0]) != len(frame) {
		return 0, nil, fmt.Errorf("bridge: frame length field %d does not match %d received bytes", frame[0], len(frame))
	}
	if frame[len(frame)-1] != syncByte {
		return 0, nil, fmt.Errorf("bridge: missing sync byte, got 0x%02X", frame[len(frame)-1])
	}

	body := frame[:len(frame)-3]
	wantCRC := uint16(frame[len(frame)-3])<<8 | uint16(frame[len(frame)-2])
	if crc := CRC16(body); crc != wantCRC {
		return 0, nil, fmt.Errorf("bridge: CRC mismatch: frame carries 0x%04X, computed 0x%04X", wantCRC, crc)
	}

	return frame[1], frame[2 : len(frame)-3], nil
}

// Payload builders for the register operations. Multi-byte fields are
// big-endian on the wire.

func pulsePayload(addr, bit uint8) []byte {
	return []byte{addr, bit}
}

func setWirePayload(addr uint8, value, mask uint32) []byte {
	p := make([]byte, 9)
	p[0] = addr
	binary.BigEndian.PutUint32(p[1:5], value)
	binary.BigEndian.PutUint32(p[5:9], mask)
	return p
}

func isTriggeredPayload(addr uint8, mask uint32) []byte {
	p := make([]byte, 5)
	p[0] = addr
	binary.BigEndian.PutUint32(p[1:5], mask)
	return p
}

func readPipePayload(addr uint8, n int) []byte {
	p := make([]byte, 3)
	p[0] = addr
	binary.BigEndian.PutUint16(p[1:3], uint16(n))
	return p
}
