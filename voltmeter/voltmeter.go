/*
Copyright 2024 Tim St. Pierre
Voltage readout on a lcd1602 character display
*/

// Package voltmeter turns raw ADC readings into a "NAME=d,dddV" line on the
// first row of the display.
package voltmeter

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/tstpierre-tc/i2clcd/mailbox"
)

// Display is the part of *i2clcd.Dev the readout needs.
type Display interface {
	Clear() error
	Print(row, col int, s string) (int, error)
	Flush() error
}

// Average4 is the mean of four samples, as a right shift.
func Average4(s [4]uint16) uint16 {
	return uint16((uint32(s[0]) + uint32(s[1]) + uint32(s[2]) + uint32(s[3])) >> 2)
}

// AverageChannels reduces sixteen conversion results, four consecutive
// samples per channel, to one value per channel.
func AverageChannels(mem [16]uint16) [4]uint16 {
	var out [4]uint16
	for ch := range out {
		out[ch] = Average4([4]uint16(mem[ch*4 : ch*4+4]))
	}
	return out
}

// ErrResolution is returned for converter widths outside 1-16 bits.
var ErrResolution = errors.New("voltmeter: resolution must be 1-16 bits")

// Volts scales a reading of a bits wide converter against vref.
func Volts(raw uint16, bits uint, vref float64) (float64, error) {
	if bits == 0 || bits > 16 {
		return 0, fmt.Errorf("%w: got %d", ErrResolution, bits)
	}
	full := float64(uint32(1)<<bits - 1)
	return float64(raw) / full * vref, nil
}

// Format renders v as exactly five characters, "d,ddd". Fractions of a
// millivolt are truncated, not rounded, and values outside 0-9.999 are
// clamped.
func Format(v float64) string {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	mv := 9999
	if v < 9.999 {
		mv = int(v * 1000)
	}
	return fmt.Sprintf("%d,%03d", mv/1000, mv%1000)
}

// Line is name, clipped or padded to two characters, followed by
// "=d,dddV".
func Line(name string, v float64) string {
	return fmt.Sprintf("%-2.2s=%sV", name, Format(v))
}

// Render clears the display and shows the reading on the first row.
func Render(d Display, name string, v float64) error {
	if err := d.Clear(); err != nil {
		return err
	}
	if _, err := d.Print(0, 0, Line(name, v)); err != nil {
		return err
	}
	return d.Flush()
}

// Monitor repaints the display each time a reading is published.
type Monitor struct {
	Display  Display
	Name     string
	Bits     uint
	VRef     float64
	Readings *mailbox.Cell[uint16]
}

// Run blocks until ctx is done, the mailbox is closed or the display fails.
func (m *Monitor) Run(ctx context.Context) error {
	if _, err := Volts(0, m.Bits, m.VRef); err != nil {
		return fmt.Errorf("voltmeter %s: %w", m.Name, err)
	}
	for {
		raw, err := m.Readings.Take(ctx)
		if errors.Is(err, mailbox.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		v, _ := Volts(raw, m.Bits, m.VRef)
		log.Debugf("voltmeter %s: raw %d = %.3fV", m.Name, raw, v)
		if err := Render(m.Display, m.Name, v); err != nil {
			return fmt.Errorf("voltmeter %s: %w", m.Name, err)
		}
	}
}
