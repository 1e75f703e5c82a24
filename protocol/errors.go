package protocol

import "fmt"

// PreambleTooLongError indicates a transaction was configured with more
// preamble bytes than the engine's command memory can hold.
type PreambleTooLongError struct {
	Length int
}

func (e *PreambleTooLongError) Error() string {
	return fmt.Sprintf("preamble length %d exceeds maximum of %d bytes", e.Length, MaxPreambleLen)
}

// PayloadTooLargeError indicates a transfer length that does not fit the
// command buffer's one-byte payload-length field.
type PayloadTooLargeError struct {
	Length int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload length %d exceeds maximum of %d bytes", e.Length, MaxPayloadLen)
}
