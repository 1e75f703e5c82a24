// Package i2c implements the software side of an FPGA-hosted I2C master:
// it shapes transactions into the engine's command-buffer format, streams
// them into the fabric's command memory one byte at a time through the
// wire-in register, starts the engine and polls the latched done flag
// under a bounded budget, then drains read data over the wire-out register
// or the bulk pipe.
//
// A Controller drives one chip-select line. It is intentionally lock-free:
// the configured transaction is single-buffered, so callers must serialize
// transactions per controller instance. Several controllers may share one
// Transport as long as the transport serializes register access.
package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fpi2c/frontpanel"
	"fpi2c/protocol"
)

// TransferMode selects the readout path of a receive.
type TransferMode int

const (
	// TransferWire drains read data byte-at-a-time through the wire-out
	// register.
	TransferWire TransferMode = iota
	// TransferPipe drains read data in bulk through the pipe-out FIFO.
	TransferPipe
)

func (m TransferMode) String() string {
	switch m {
	case TransferWire:
		return "wire"
	case TransferPipe:
		return "pipe"
	default:
		return fmt.Sprintf("TransferMode(%d)", int(m))
	}
}

// Controller drives the I2C engine for one chip-select line.
type Controller struct {
	transport frontpanel.Transport
	eps       frontpanel.I2CEndpoints
	cfg       Config
	log       logrus.FieldLogger

	// txn is the transaction configured for the next transmit or receive.
	// It is created fresh by Configure and consumed by the transfer that
	// uses it.
	txn *protocol.Transaction
}

// New creates a Controller over the given transport and endpoint map. The
// required endpoints are validated here so a broken map fails at
// construction rather than mid-transaction.
func New(transport frontpanel.Transport, eps frontpanel.I2CEndpoints, opts ...Option) (*Controller, error) {
	if err := eps.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Controller{
		transport: transport,
		eps:       eps,
		cfg:       cfg,
		log:       cfg.Logger.WithField("addr_pin", cfg.AddrPin),
	}, nil
}

// NewChips creates one Controller per chip-select line, all sharing the
// same transport and endpoint map. Controllers are returned in addrPins
// order.
func NewChips(transport frontpanel.Transport, eps frontpanel.I2CEndpoints, addrPins []int, opts ...Option) ([]*Controller, error) {
	chips := make([]*Controller, 0, len(addrPins))
	for _, pin := range addrPins {
		c, err := New(transport, eps, append(opts, WithAddrPin(pin))...)
		if err != nil {
			return nil, err
		}
		chips = append(chips, c)
	}
	return chips, nil
}

// Configure shapes the next transaction. It must be called before every
// Transmit or Receive; the previous transaction shape is discarded. No
// register traffic is issued.
func (c *Controller) Configure(starts, stops byte, preamble []byte) error {
	txn, err := protocol.Configure(starts, stops, preamble)
	if err != nil {
		return err
	}
	c.txn = txn
	return nil
}

// consume takes the configured transaction, leaving the controller
// unconfigured so a stale shape can never be replayed by accident.
func (c *Controller) consume() (*protocol.Transaction, error) {
	if c.txn == nil {
		return nil, ErrNotConfigured
	}
	txn := c.txn
	c.txn = nil
	return txn, nil
}

// Transmit streams the configured preamble plus payload into the engine's
// command memory, starts the transaction and waits for the done flag.
// On timeout the hardware transaction state is left as-is.
func (c *Controller) Transmit(ctx context.Context, data []byte) error {
	if len(data) > protocol.MaxPayloadLen {
		// Rejected before the transaction is consumed, so the caller can
		// retry with a payload that fits.
		return &protocol.PayloadTooLargeError{Length: len(data)}
	}
	txn, err := c.consume()
	if err != nil {
		return err
	}

	buf := txn.EncodeWrite(data)
	c.log.WithFields(logrus.Fields{
		"bytes":    len(buf),
		"preamble": txn.PreambleLen(),
		"payload":  len(data),
	}).Debug("i2c transmit")

	if err := c.stream(buf); err != nil {
		return err
	}
	if err := c.pulse(c.eps.Start); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	if err := c.waitDone(ctx, c.cfg.TransmitPollAttempts, c.cfg.TransmitPollInterval, "transmit"); err != nil {
		return err
	}
	return nil
}

// Receive streams the configured preamble into the engine, starts the read
// transaction, waits for the done flag, then drains n bytes over the
// selected path. With readout false it only waits for completion and
// returns no data. n must fit the command buffer's one-byte length field.
// Receive never returns a short read: the result is either n bytes or an
// error.
func (c *Controller) Receive(ctx context.Context, n int, mode TransferMode, resetPipe, readout bool) ([]byte, error) {
	if n < 0 || n > protocol.MaxPayloadLen {
		return nil, &protocol.PayloadTooLargeError{Length: n}
	}
	txn, err := c.consume()
	if err != nil {
		return nil, err
	}

	if mode == TransferPipe {
		// Report a broken endpoint map before any register traffic.
		if c.eps.PipeOut == nil {
			return nil, &MissingEndpointError{Name: "PIPE_OUT"}
		}
		if resetPipe {
			if c.eps.FifoReset == nil {
				return nil, &MissingEndpointError{Name: "FIFO_RESET"}
			}
			if err := c.pulse(*c.eps.FifoReset); err != nil {
				return nil, fmt.Errorf("reset pipe fifo: %w", err)
			}
		}
	}

	buf := txn.EncodeRead(n)
	c.log.WithFields(logrus.Fields{
		"n":    n,
		"mode": mode.String(),
	}).Debug("i2c receive")

	if err := c.stream(buf); err != nil {
		return nil, err
	}
	if err := c.pulse(c.eps.Start); err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}

	if err := c.waitDone(ctx, c.cfg.ReceivePollAttempts, c.cfg.ReceivePollInterval, "receive"); err != nil {
		return nil, err
	}

	if !readout {
		return nil, nil
	}

	switch mode {
	case TransferPipe:
		return c.drainPipe(n)
	default:
		return c.drainWire(n)
	}
}

// stream resets the engine's memory pointer and transfers the command
// buffer one byte at a time: masked wire write, commit, advance pulse.
func (c *Controller) stream(buf []byte) error {
	if err := c.pulse(c.eps.MemStart); err != nil {
		return fmt.Errorf("reset memory pointer: %w", err)
	}

	in := c.eps.In
	mask := uint32(0xFF) << in.Bit
	for i, b := range buf {
		if err := c.transport.SetWireIn(in.Address, uint32(b)<<in.Bit, mask); err != nil {
			return fmt.Errorf("set wire-in byte %d: %w", i, err)
		}
		if err := c.transport.UpdateWireIns(); err != nil {
			return fmt.Errorf("commit wire-in byte %d: %w", i, err)
		}
		if err := c.pulse(c.eps.MemWrite); err != nil {
			return fmt.Errorf("advance write pointer at byte %d: %w", i, err)
		}
	}
	return nil
}

// drainWire reads n result bytes through the wire-out register: pointer
// reset, then one register read and advance pulse per byte.
func (c *Controller) drainWire(n int) ([]byte, error) {
	if err := c.pulse(c.eps.MemStart); err != nil {
		return nil, fmt.Errorf("reset read pointer: %w", err)
	}

	out := c.eps.Out
	mask := uint32(0xFF) << out.Bit
	data := make([]byte, n)
	for i := range data {
		v, err := c.transport.GetWireOut(out.Address)
		if err != nil {
			return nil, fmt.Errorf("read wire-out byte %d: %w", i, err)
		}
		data[i] = byte((v & mask) >> out.Bit)
		if err := c.pulse(c.eps.MemRead); err != nil {
			return nil, fmt.Errorf("advance read pointer at byte %d: %w", i, err)
		}
	}
	return data, nil
}

// drainPipe reads n result bytes in bulk through the pipe-out FIFO.
func (c *Controller) drainPipe(n int) ([]byte, error) {
	data, err := c.transport.ReadPipeOut(c.eps.PipeOut.Address, n)
	if err != nil {
		return nil, fmt.Errorf("pipe readout: %w", err)
	}
	if len(data) != n {
		return nil, fmt.Errorf("pipe readout: expected %d bytes, got %d", n, len(data))
	}
	return data, nil
}

// waitDone polls the latched done flag, sleeping interval between polls,
// for at most attempts polls. The context cancels the wait early; the
// hardware transaction keeps running either way.
func (c *Controller) waitDone(ctx context.Context, attempts int, interval time.Duration, op string) error {
	done := c.eps.Done
	for i := 0; i < attempts; i++ {
		if err := c.transport.UpdateTriggerOuts(); err != nil {
			return fmt.Errorf("refresh trigger flags: %w", err)
		}
		fired, err := c.transport.IsTriggered(done.Address, done.Mask())
		if err != nil {
			return fmt.Errorf("read done flag: %w", err)
		}
		if fired {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	c.log.WithFields(logrus.Fields{
		"op":       op,
		"attempts": attempts,
	}).Warn("i2c transaction timed out")
	return &TimeoutError{Op: op, Attempts: attempts, Interval: interval}
}

func (c *Controller) pulse(ep frontpanel.Endpoint) error {
	return c.transport.PulseTrigger(ep.Address, ep.Bit)
}

// Reset pulses the engine's reset trigger. It is a stateless pass-through
// and does not touch the configured transaction.
func (c *Controller) Reset() error {
	if err := c.pulse(c.eps.Reset); err != nil {
		return fmt.Errorf("reset engine: %w", err)
	}
	return nil
}
