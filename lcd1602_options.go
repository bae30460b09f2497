/*
Copyright 2024 Tim St. Pierre
Options for lcd1602 character display
*/
package i2clcd

import (
	"errors"
	"time"
)

// FlushStrategy selects how Flush repaints the screen buffer.
type FlushStrategy uint8

const (
	// FullRepaint sets the cursor before every cell.
	FullRepaint FlushStrategy = iota
	// RowAutoIncrement sets the cursor once per row and relies on the
	// controller incrementing the DDRAM address after each character.
	RowAutoIncrement
)

func (f FlushStrategy) String() string {
	switch f {
	case FullRepaint:
		return "full"
	case RowAutoIncrement:
		return "row"
	default:
		return "unknown"
	}
}

// ParseFlushStrategy accepts the names returned by FlushStrategy.String.
func ParseFlushStrategy(s string) (FlushStrategy, error) {
	switch s {
	case "full", "":
		return FullRepaint, nil
	case "row":
		return RowAutoIncrement, nil
	default:
		return 0, errors.New("unknown flush strategy " + s)
	}
}

type Opts struct {
	// The I²C slave address
	I2CAddr uint16
	Flush   FlushStrategy
	// Blocking delay used for the enable pulse. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// Wait before the 4-bit handshake, the controller needs >40ms after power on.
	StartupDelay time.Duration
	// How many times a raw byte is re-sent after a NACK.
	NackRetries int
	// Carry on as if acknowledged when the expander does not answer.
	IgnoreNack bool
	CharDelay  time.Duration
}

var DefaultOpts = Opts{
	I2CAddr:      0x27,
	Flush:        FullRepaint,
	StartupDelay: 50 * time.Millisecond,
}

func (o *Opts) i2cAddr() (uint16, error) {
	switch o.I2CAddr {
	case 0:
		// Default address.
		return 0x27, nil
	case 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27:
		// PCF8574
		return o.I2CAddr, nil
	case 0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F:
		// PCF8574A
		return o.I2CAddr, nil
	default:
		return 0, errors.New("given address not supported by device")
	}
}

func (o *Opts) sleep() func(time.Duration) {
	if o.Sleep == nil {
		return time.Sleep
	}
	return o.Sleep
}
