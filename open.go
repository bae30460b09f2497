/*
Copyright 2024 Tim St. Pierre
Opens a lcd1602 character display on a host I²C bus
*/
package i2clcd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/tstpierre-tc/i2clcd/i2cmaster"
)

// Open initializes the host drivers, opens the named I²C bus ("" for the
// first one) and brings up the display on it. The caller closes the bus.
func Open(busName string, bus *i2cmaster.Opts, opts *Opts) (*Dev, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("i2clcd: host init: %w", err)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("i2clcd: open bus %q: %w", busName, err)
	}
	log.Infof("i2clcd: using %s", b)
	m, err := i2cmaster.New(b, bus)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	d, err := New(m, opts)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return d, b, nil
}
