/*
Copyright 2024 Tim St. Pierre
Options for the I²C master transmitter
*/
package i2cmaster

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// ResultHook observes every completed transmission. err is nil on ACK.
type ResultHook func(addr uint16, data byte, err error)

type Opts struct {
	// How long to wait for the slave to acknowledge. Zero waits forever.
	AckTimeout time.Duration
	// Bus clock, left untouched when zero.
	Speed physic.Frequency
	// Side channel for ACK/NACK, e.g. a status LED.
	OnResult ResultHook
}

var DefaultOpts = Opts{
	AckTimeout: 10 * time.Millisecond,
}
