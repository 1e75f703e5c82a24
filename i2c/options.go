package i2c

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxTimeoutMS is the poll budget shared by both directions, in
// milliseconds. Transmit spends it in 1 ms polls; receive polls an order
// of magnitude coarser to match the longer expected latency, spending the
// same wall-clock budget in 10 ms steps.
const MaxTimeoutMS = 50

// Config holds the tunable parameters of a Controller.
type Config struct {
	// TransmitPollInterval is the sleep between done-flag polls after a
	// transmit is started.
	TransmitPollInterval time.Duration

	// TransmitPollAttempts is the number of done-flag polls before a
	// transmit reports a timeout.
	TransmitPollAttempts int

	// ReceivePollInterval and ReceivePollAttempts are the receive-side
	// equivalents.
	ReceivePollInterval time.Duration
	ReceivePollAttempts int

	// ByteOrder selects how multi-byte register fields are assembled by
	// ReadField and WriteField.
	ByteOrder ByteOrder

	// Logger receives debug-level transaction traces.
	Logger logrus.FieldLogger

	// AddrPin distinguishes controllers sharing one transport when the
	// bitfile muxes several chip-select lines. It is carried into log
	// fields only; the endpoint map determines the actual routing.
	AddrPin int
}

func defaultConfig() Config {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Config{
		TransmitPollInterval: time.Millisecond,
		TransmitPollAttempts: MaxTimeoutMS,
		ReceivePollInterval:  10 * time.Millisecond,
		ReceivePollAttempts:  MaxTimeoutMS / 10,
		ByteOrder:            MSBFirst,
		Logger:               l,
	}
}

// Option is a functional option for configuring a Controller.
type Option func(*Config)

// WithTransmitPoll overrides the transmit-side poll interval and budget.
func WithTransmitPoll(interval time.Duration, attempts int) Option {
	return func(c *Config) {
		if interval > 0 {
			c.TransmitPollInterval = interval
		}
		if attempts > 0 {
			c.TransmitPollAttempts = attempts
		}
	}
}

// WithReceivePoll overrides the receive-side poll interval and budget.
func WithReceivePoll(interval time.Duration, attempts int) Option {
	return func(c *Config) {
		if interval > 0 {
			c.ReceivePollInterval = interval
		}
		if attempts > 0 {
			c.ReceivePollAttempts = attempts
		}
	}
}

// WithByteOrder selects the multi-byte order for register field access.
func WithByteOrder(order ByteOrder) Option {
	return func(c *Config) {
		c.ByteOrder = order
	}
}

// WithLogger attaches a logger for transaction traces.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithAddrPin tags the controller with its chip-select line.
func WithAddrPin(pin int) Option {
	return func(c *Config) {
		c.AddrPin = pin
	}
}
