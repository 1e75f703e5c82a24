package bridge

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	frame, err := encodeFrame(opSetWireIn, setWirePayload(0x01, 0xAB00, 0xFF00))
	if err != nil {
		t.Fatalf("encodeFrame failed: %v", err)
	}

	if int(frame[0]) != len(frame) {
		t.Errorf("Length field %d does not match frame size %d", frame[0], len(frame))
	}
	if frame[len(frame)-1] != syncByte {
		t.Error("Frame missing trailing sync byte")
	}

	op, payload, err := decodeFrame(frame)
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if op != opSetWireIn {
		t.Errorf("Expected op 0x%02X, got 0x%02X", opSetWireIn, op)
	}
	if !bytes.Equal(payload, setWirePayload(0x01, 0xAB00, 0xFF00)) {
		t.Errorf("Payload mismatch: got %v", payload)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	frame, err := encodeFrame(opPulseTrigger, pulsePayload(0x40, 3))
	if err != nil {
		t.Fatalf("encodeFrame failed: %v", err)
	}

	tests := []struct {
		name   string
		mangle func([]byte)
	}{
		{"flipped payload bit", func(f []byte) { f[2] ^= 0x01 }},
		{"broken crc", func(f []byte) { f[len(f)-2] ^= 0xFF }},
		{"missing sync", func(f []byte) { f[len(f)-1] = 0x00 }},
		{"wrong length", func(f []byte) { f[0]++ }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bad := make([]byte, len(frame))
			copy(bad, frame)
			tc.mangle(bad)
			if _, _, err := decodeFrame(bad); err == nil {
				t.Error("Corrupted frame passed validation")
			}
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	if _, err := encodeFrame(opReadPipeOut, make([]byte, frameLenMax)); err == nil {
		t.Error("Expected error for oversized payload")
	}
}

func TestCRC16(t *testing.T) {
	// Known-answer check against the bridge MCU firmware implementation.
	tests := []struct {
		data []byte
		want uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte{0x00}, 0x0F87},
	}
	for _, tc := range tests {
		if got := CRC16(tc.data); got != tc.want {
			t.Errorf("CRC16(%v): expected 0x%04X, got 0x%04X", tc.data, tc.want, got)
		}
	}

	// The CRC must be order sensitive.
	if CRC16([]byte{1, 2}) == CRC16([]byte{2, 1}) {
		t.Error("CRC16 should distinguish byte order")
	}
}
