/*
Copyright 2024 Tim St. Pierre
Controls a 1602 character LCD display using I2C backpack
Thanks to Dave Cheney for figuring out the registers!
*/
package i2clcd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"

	"github.com/tstpierre-tc/i2clcd/i2cmaster"
)

const (
	// Commands
	CMD_Clear_Display        = 0x01
	CMD_Return_Home          = 0x02
	CMD_Entry_Mode           = 0x04
	CMD_Display_Control      = 0x08
	CMD_Cursor_Display_Shift = 0x10
	CMD_Function_Set         = 0x20
	CMD_DDRAM_Set            = 0x80

	// Options
	OPT_Increment      = 0x02 // CMD_Entry_Mode
	OPT_Cursor_Shift   = 0x01 // CMD_Entry_Mode
	OPT_Enable_Display = 0x04 // CMD_Display_Control
	OPT_Enable_Cursor  = 0x02 // CMD_Display_Control
	OPT_Enable_Blink   = 0x01 // CMD_Display_Control
	OPT_Display_Shift  = 0x08 // CMD_Cursor_Display_Shift
	OPT_Shift_Right    = 0x04 // CMD_Cursor_Display_Shift 0 = Left
	OPT_2_Lines        = 0x08 // CMD_Function_Set 0 = 1 line
	OPT_5x10_Dots      = 0x04 // CMD_Function_Set 0 = 5x7 dots

	// Pins
	EN        = 2
	WR        = 1
	RS        = 0
	D4        = 4
	D5        = 5
	D6        = 6
	D7        = 7
	BACKLIGHT = 3
)

const (
	Rows      = 2
	Cols      = 16
	EmptyChar = 0x20

	rowStride = 0x40

	// 8-bit mode wake up pattern of the cold start handshake.
	wakeNibble    = 0x03
	fourBitNibble = 0x02

	enableSetup    = 1 * time.Millisecond
	enableWidth    = 2 * time.Millisecond
	enableHoldTime = 1 * time.Millisecond
)

var (
	ErrNotInitialized = errors.New("i2clcd: not initialized")
	ErrOutOfRange     = errors.New("i2clcd: cell out of range")
)

var dataPins = [4]byte{D4, D5, D6, D7}

// Transport carries single bytes to the I²C expander. The Locker gives the
// display exclusive use of the bus for the duration of one byte.
type Transport interface {
	sync.Locker
	TransmitByte(addr uint16, data byte) error
}

// State is the controller bring-up state.
type State uint8

const (
	Uninitialized State = iota
	FourBitMode
	FunctionSet
	DisplayClear
	EntryModeSet
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case FourBitMode:
		return "4-bit"
	case FunctionSet:
		return "function-set"
	case DisplayClear:
		return "display-clear"
	case EntryModeSet:
		return "entry-mode-set"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type Dev struct {
	mu            sync.Mutex
	t             Transport
	addr          uint16
	state         State
	backlightOn   bool
	displayEnable bool
	cursor        bool
	blink         bool
	displayShift  bool
	shiftRight    bool
	buf           [Rows][Cols]byte
	sleep         func(time.Duration)
	opts          Opts
}

func (d *Dev) String() string {
	return fmt.Sprintf("lcd1602{%v %#x}", d.t, d.addr)
}

// NewI2C returns a new device that communicates over a periph I²C bus.
//
// Use default options if nil is used.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	m, err := i2cmaster.New(b, nil)
	if err != nil {
		return nil, err
	}
	return New(m, opts)
}

// New runs the controller bring-up over t and returns a Ready display with
// a blank buffer.
func New(t Transport, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr, err := opts.i2cAddr()
	if err != nil {
		return nil, fmt.Errorf("i2clcd %#x: %v", opts.I2CAddr, err)
	}
	if opts.Flush > RowAutoIncrement {
		return nil, fmt.Errorf("i2clcd %#x: unknown flush strategy %d", addr, opts.Flush)
	}
	d := makeDev(t, addr, opts)
	if err := d.Initialize(); err != nil {
		return nil, err
	}
	return d, nil
}

func makeDev(t Transport, addr uint16, opts *Opts) *Dev {
	d := &Dev{
		t:             t,
		addr:          addr,
		displayEnable: true,
		cursor:        true,
		blink:         true,
		opts:          *opts,
		sleep:         opts.sleep(),
	}
	d.resetBuffer()
	return d
}

// Initialize performs the cold start 4-bit handshake. It may be re-run at
// any time to recover from a bus timeout.
func (d *Dev) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialize()
}

func (d *Dev) initialize() error {
	d.state = Uninitialized
	d.backlightOn = true
	if d.opts.StartupDelay > 0 {
		d.sleep(d.opts.StartupDelay)
	}

	// Activate LCD
	for _, n := range [...]byte{wakeNibble, wakeNibble, wakeNibble, fourBitNibble} {
		if err := d.sendNibble(n, true); err != nil {
			return err
		}
	}
	d.state = FourBitMode

	if err := d.command(CMD_Function_Set | OPT_2_Lines); err != nil {
		return err
	}
	d.state = FunctionSet

	if err := d.command(CMD_Display_Control); err != nil {
		return err
	}
	if err := d.clear(); err != nil {
		return err
	}
	d.state = DisplayClear

	if err := d.writeEntryMode(); err != nil {
		return err
	}
	d.state = EntryModeSet

	if err := d.writeDisplaySwitch(); err != nil {
		return err
	}
	d.state = Ready
	log.Infof("lcd1602 %#x: ready", d.addr)
	return nil
}

// State reports where the controller is in its bring-up.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dev) ready() error {
	if d.state != Ready {
		return fmt.Errorf("%w: lcd1602 %#x is %s", ErrNotInitialized, d.addr, d.state)
	}
	return nil
}

// Halt blanks the screen and turns off the backlight.
func (d *Dev) Halt() error {
	if err := d.Clear(); err != nil {
		return err
	}
	return d.SetBacklight(false)
}

// SetBacklight switches the backlight. The state is carried in every
// following transmission.
func (d *Dev) SetBacklight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.t.Lock()
	defer d.t.Unlock()
	if err := d.raw(pinInterpret(BACKLIGHT, 0x00, on)); err != nil {
		return err
	}
	d.backlightOn = on
	return nil
}

func (d *Dev) Backlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backlightOn
}

// Clear blanks the screen buffer and the display, and homes the cursor.
// The buffer is not repainted.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.clear()
}

func (d *Dev) clear() error {
	d.resetBuffer()
	return d.command(CMD_Clear_Display)
}

func (d *Dev) Home() error {
	return d.Command(CMD_Return_Home)
}

// SetCursor moves the hardware cursor. row and col are not validated:
// values past the 2x16 window address DDRAM outside the visible area.
func (d *Dev) SetCursor(row, col byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.setCursor(row, col)
}

func (d *Dev) setCursor(row, col byte) error {
	return d.command(CMD_DDRAM_Set | (row*rowStride + col))
}

// WriteChar writes c at the hardware cursor.
func (d *Dev) WriteChar(c byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.write(c, false)
}

// Write sends buf straight to the display at the hardware cursor,
// bypassing the screen buffer.
func (d *Dev) Write(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return 0, err
	}
	for i, c := range buf {
		if err := d.write(c, false); err != nil {
			return i, err
		}
		if d.opts.CharDelay > 0 {
			d.sleep(d.opts.CharDelay)
		}
	}
	return len(buf), nil
}

// Flush repaints all 32 cells from the screen buffer.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	log.Debugf("lcd1602 %#x: flush (%s)", d.addr, d.opts.Flush)
	for r := byte(0); r < Rows; r++ {
		if d.opts.Flush == RowAutoIncrement {
			if err := d.setCursor(r, 0); err != nil {
				return err
			}
		}
		for c := byte(0); c < Cols; c++ {
			if d.opts.Flush == FullRepaint {
				if err := d.setCursor(r, c); err != nil {
					return err
				}
			}
			if err := d.write(d.buf[r][c], false); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetDisplay switches the display, the underline cursor and cursor blink.
func (d *Dev) SetDisplay(on, cursor, blink bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.displayEnable, d.cursor, d.blink = on, cursor, blink
	return d.writeDisplaySwitch()
}

func (d *Dev) SetDisplayShift(value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.displayShift = value
	return d.writeEntryMode()
}

func (d *Dev) SetShiftRight(value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.shiftRight = value
	return d.writeEntryMode()
}

func (d *Dev) writeDisplaySwitch() error {
	option := byte(CMD_Display_Control)
	if d.displayEnable {
		option = option | OPT_Enable_Display
	}
	if d.cursor {
		option = option | OPT_Enable_Cursor
	}
	if d.blink {
		option = option | OPT_Enable_Blink
	}
	return d.command(option)
}

func (d *Dev) DisplayShift(right bool) error {
	option := byte(CMD_Cursor_Display_Shift | OPT_Display_Shift)
	if right {
		option = option | OPT_Shift_Right
	}
	return d.Command(option)
}

func (d *Dev) CursorShift(right bool) error {
	option := byte(CMD_Cursor_Display_Shift)
	if right {
		option = option | OPT_Shift_Right
	}
	return d.Command(option)
}

func (d *Dev) writeEntryMode() error {
	option := byte(CMD_Entry_Mode)
	if !d.shiftRight {
		option = option | OPT_Increment
	}
	if d.displayShift {
		option = option | OPT_Cursor_Shift
	}
	return d.command(option)
}

// Command sends an instruction byte to the controller.
func (d *Dev) Command(b byte) error {
	return d.SendByte(b, true)
}

// SendByte sends b as two nibbles, high first. The bus is held for both.
func (d *Dev) SendByte(b byte, isInstruction bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.write(b, isInstruction)
}

// SendNibble latches the low four bits of nibble into the controller.
func (d *Dev) SendNibble(nibble byte, isInstruction bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.sendNibble(nibble, isInstruction)
}

func (d *Dev) command(data byte) error {
	return d.write(data, true)
}

func (d *Dev) write(data byte, command bool) error {
	log.Tracef("lcd1602 %#x: writing %08b %#02x command=%t", d.addr, data, data, command)
	d.t.Lock()
	defer d.t.Unlock()
	if err := d.enable(d.assemble(data>>4, command)); err != nil {
		return err
	}
	return d.enable(d.assemble(data&0x0F, command))
}

func (d *Dev) sendNibble(nibble byte, command bool) error {
	d.t.Lock()
	defer d.t.Unlock()
	return d.enable(d.assemble(nibble, command))
}

// assemble places nibble on D4-D7 and adds register select and backlight.
func (d *Dev) assemble(nibble byte, command bool) byte {
	var data byte
	for i, pin := range dataPins {
		data = pinInterpret(pin, data, (nibble>>i)&0x01 == 0x01)
	}
	// Set the register selector to 1 if this is data
	data = pinInterpret(RS, data, !command)
	return pinInterpret(BACKLIGHT, data, d.backlightOn)
}

// enable strobes EN around data: low 1ms, high 2ms, low 1ms. The
// controller misses the latch with shorter timings.
func (d *Dev) enable(data byte) error {
	if err := d.raw(data); err != nil {
		return err
	}
	d.sleep(enableSetup)
	if err := d.raw(pinInterpret(EN, data, true)); err != nil {
		return err
	}
	d.sleep(enableWidth)
	if err := d.raw(data); err != nil {
		return err
	}
	d.sleep(enableHoldTime)
	return nil
}

// raw transmits one expander byte, applying the NACK policy.
func (d *Dev) raw(data byte) error {
	var err error
	for attempt := 0; attempt <= d.opts.NackRetries; attempt++ {
		err = d.t.TransmitByte(d.addr, data)
		if err == nil || !errors.Is(err, i2cmaster.ErrNoAcknowledge) {
			break
		}
		log.Debugf("lcd1602 %#x: NACK on %#02x, attempt %d", d.addr, data, attempt+1)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, i2cmaster.ErrNoAcknowledge) && d.opts.IgnoreNack:
		log.Warnf("lcd1602 %#x: ignoring %v", d.addr, err)
		return nil
	case errors.Is(err, i2cmaster.ErrBusTimeout):
		d.state = Uninitialized
	}
	return fmt.Errorf("lcd1602 %#x: %w", d.addr, err)
}

// pinInterpret sets or clears bit pin of data.
func pinInterpret(pin, data byte, value bool) byte {
	if value {
		// Construct mask using pin
		var mask byte = 0x01 << (pin)
		data = data | mask
	} else {
		// Construct mask using pin
		var mask byte = 0x01<<(pin) ^ 0xFF
		data = data & mask
	}
	return data
}
