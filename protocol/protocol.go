// Package protocol encodes command buffers for an FPGA-hosted I2C master
// engine. The encoder is pure: it never touches hardware, it only lays
// bytes out in the format the engine's command memory expects.
package protocol

// Command buffer layout as consumed by the engine's command memory:
//
//	byte 0: preamble length (bits 0-6), read flag (bit 7)
//	byte 1: start-bit mask, one bit per preamble byte position
//	byte 2: stop-bit mask, same encoding (stop wins over start)
//	byte 3: payload length in bytes
//	byte 4..: preamble bytes, then payload bytes (writes only)
const (
	posLength  = 0
	posStarts  = 1
	posStops   = 2
	posPayload = 3

	headerSize = 4

	// ReadFlag marks the pending transaction as a read in byte 0.
	ReadFlag = 0x80

	// MaxPreambleLen is the engine's command memory limit for preamble bytes.
	MaxPreambleLen = 7

	// MaxPayloadLen is the largest transfer a single transaction can carry:
	// the payload-length field in byte 3 is one byte wide.
	MaxPayloadLen = 255
)
