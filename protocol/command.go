package protocol

// Transaction describes the shape of one I2C transaction: the preamble
// bytes the engine clocks out before any payload, and the per-position
// start/stop masks. A Transaction is built fresh for every transaction and
// discarded afterwards; there is no long-lived command buffer shared
// between calls.
type Transaction struct {
	starts   byte
	stops    byte
	preamble []byte
}

// Configure validates the transaction shape and returns a Transaction
// ready for encoding. starts and stops are bitmasks over preamble byte
// positions; a bit set in both masks encodes a stop (the engine gives stop
// precedence over start).
func Configure(starts, stops byte, preamble []byte) (*Transaction, error) {
	if len(preamble) > MaxPreambleLen {
		return nil, &PreambleTooLongError{Length: len(preamble)}
	}
	t := &Transaction{
		starts:   starts,
		stops:    stops,
		preamble: make([]byte, len(preamble)),
	}
	copy(t.preamble, preamble)
	return t, nil
}

// DataStart returns the offset of the first payload byte in the encoded
// command buffer: the four control bytes plus the preamble.
func (t *Transaction) DataStart() int {
	return headerSize + len(t.preamble)
}

// PreambleLen returns the number of preamble bytes.
func (t *Transaction) PreambleLen() int {
	return len(t.preamble)
}

// Starts returns the start-bit mask.
func (t *Transaction) Starts() byte { return t.starts }

// Stops returns the stop-bit mask.
func (t *Transaction) Stops() byte { return t.stops }

// EncodeWrite lays out the command buffer for a write transaction: control
// bytes, preamble, then the payload appended after the preamble.
func (t *Transaction) EncodeWrite(payload []byte) []byte {
	buf := make([]byte, t.DataStart()+len(payload))
	buf[posLength] = byte(len(t.preamble))
	buf[posStarts] = t.starts
	buf[posStops] = t.stops
	buf[posPayload] = byte(len(payload))
	copy(buf[headerSize:], t.preamble)
	copy(buf[t.DataStart():], payload)
	return buf
}

// EncodeRead lays out the command buffer for a read transaction: the read
// flag is set in byte 0 and byte 3 carries the number of bytes the engine
// should clock in. Reads carry no payload bytes, so the buffer ends at the
// data start offset.
func (t *Transaction) EncodeRead(n int) []byte {
	buf := make([]byte, t.DataStart())
	buf[posLength] = byte(len(t.preamble)) | ReadFlag
	buf[posStarts] = t.starts
	buf[posStops] = t.stops
	buf[posPayload] = byte(n)
	copy(buf[headerSize:], t.preamble)
	return buf
}
