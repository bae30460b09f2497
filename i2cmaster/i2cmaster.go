/*
Copyright 2024 Tim St. Pierre
Blocking single byte I²C master transmitter
*/
package i2cmaster

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"
)

var (
	ErrBusBusy       = errors.New("i2cmaster: bus busy")
	ErrNoAcknowledge = errors.New("i2cmaster: no acknowledge")
	ErrBusTimeout    = errors.New("i2cmaster: bus timeout")
)

// Result is the two valued outcome of a transmission.
type Result int

const (
	Ack Result = iota
	Nack
)

func (r Result) String() string {
	if r == Ack {
		return "ACK"
	}
	return "NACK"
}

// ResultOf maps a TransmitByte error onto ACK/NACK. Busy and timeout
// errors count as NACK since nothing was acknowledged.
func ResultOf(err error) Result {
	if err == nil {
		return Ack
	}
	return Nack
}

// txer is satisfied by both periph i2c.Bus and tinygo drivers.I2C.
type txer interface {
	Tx(addr uint16, w, r []byte) error
}

// Master delivers exactly one byte to one slave address per call.
type Master struct {
	mu       sync.Mutex
	inFlight atomic.Bool
	bus      txer
	name     string
	opts     Opts
}

// New returns a Master driving a periph I²C bus.
//
// Use default options if nil is used.
func New(b i2c.Bus, opts *Opts) (*Master, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Speed != 0 {
		if err := b.SetSpeed(opts.Speed); err != nil {
			return nil, fmt.Errorf("i2cmaster %s: set speed %s: %w", b, opts.Speed, err)
		}
	}
	return &Master{bus: b, name: b.String(), opts: *opts}, nil
}

// NewTinyGo returns a Master driving a TinyGo I²C peripheral. Bus speed is
// configured on the peripheral itself, opts.Speed is ignored.
func NewTinyGo(b drivers.I2C, opts *Opts) *Master {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Master{bus: b, name: "tinygo", opts: *opts}
}

func (m *Master) String() string {
	return fmt.Sprintf("i2cmaster{%s}", m.name)
}

// Lock takes exclusive ownership of the bus. Multi byte sequences that must
// not be interleaved with other bus users are bracketed by Lock and Unlock.
func (m *Master) Lock() { m.mu.Lock() }

// Unlock releases ownership taken by Lock.
func (m *Master) Unlock() { m.mu.Unlock() }

// TransmitByte sends START, addr+W, data, STOP and reports the acknowledge.
// A nil error means the slave acknowledged.
func (m *Master) TransmitByte(addr uint16, data byte) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		log.Debugf("i2cmaster: %#x busy, dropping %#02x", addr, data)
		return fmt.Errorf("%w: transmit %#02x to %#x", ErrBusBusy, data, addr)
	}
	err := m.tx(addr, data)
	if m.opts.OnResult != nil {
		m.opts.OnResult(addr, data, err)
	}
	return err
}

func (m *Master) tx(addr uint16, data byte) error {
	w := []byte{data}
	if m.opts.AckTimeout <= 0 {
		defer m.inFlight.Store(false)
		return nackErr(addr, m.bus.Tx(addr, w, nil))
	}

	done := make(chan error, 1)
	go func() {
		// A hung transaction keeps the bus busy until it returns. The flag
		// is cleared before the result is handed over so the caller's next
		// transmission finds the bus free.
		err := m.bus.Tx(addr, w, nil)
		m.inFlight.Store(false)
		done <- err
	}()
	t := time.NewTimer(m.opts.AckTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		return nackErr(addr, err)
	case <-t.C:
		log.Errorf("i2cmaster: %#x no acknowledge within %s", addr, m.opts.AckTimeout)
		return fmt.Errorf("%w: %#x after %s", ErrBusTimeout, addr, m.opts.AckTimeout)
	}
}

func nackErr(addr uint16, err error) error {
	if err == nil {
		log.Tracef("i2cmaster: %#x ACK", addr)
		return nil
	}
	log.Debugf("i2cmaster: %#x NACK: %v", addr, err)
	return fmt.Errorf("%w from %#x: %w", ErrNoAcknowledge, addr, err)
}
