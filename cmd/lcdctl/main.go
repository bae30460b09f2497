/*
Copyright 2024 Tim St. Pierre
Interactive shell for a lcd1602 character display
*/
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	log "github.com/sirupsen/logrus"

	"github.com/tstpierre-tc/i2clcd"
	"github.com/tstpierre-tc/i2clcd/i2cmaster"
	"github.com/tstpierre-tc/i2clcd/voltmeter"
)

var (
	busName  = flag.String("bus", "", "I²C bus name, empty for the first bus.")
	addr     = flag.Uint("addr", 0x27, "I²C address of the display backpack.")
	flushStr = flag.String("flush", "full", "Flush strategy: full or row.")
	verbose  = flag.Bool("v", false, "Debug logging.")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	strategy, err := i2clcd.ParseFlushStrategy(*flushStr)
	if err != nil {
		log.Fatal(err)
	}
	opts := i2clcd.DefaultOpts
	opts.I2CAddr = uint16(*addr)
	opts.Flush = strategy
	busOpts := i2cmaster.DefaultOpts
	busOpts.OnResult = func(addr uint16, data byte, err error) {
		if err != nil {
			log.Warnf("%#x: %s on %#02x", addr, i2cmaster.ResultOf(err), data)
		}
	}

	d, bus, err := i2clcd.Open(*busName, &busOpts, &opts)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	shell := newShell(d)
	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			log.Fatal(err)
		}
		return
	}
	shell.Run()
}

func newShell(d *i2clcd.Dev) *ishell.Shell {
	s := ishell.New()
	s.SetPrompt(fmt.Sprintf("%s > ", d))
	for _, cmd := range commands(d) {
		s.AddCmd(cmd)
	}
	return s
}

func parseCell(args []string) (int, int, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("ROW COL expected")
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, err
	}
	col, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, err
	}
	return row, col, nil
}

func commands(d *i2clcd.Dev) []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "init",
			Help: "rerun the controller handshake",
			Func: func(c *ishell.Context) {
				if err := d.Initialize(); err != nil {
					c.Err(err)
					return
				}
				c.Println(d.State())
			},
		},
		{
			Name: "clear",
			Help: "blank the buffer and the display",
			Func: func(c *ishell.Context) {
				if err := d.Clear(); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "put",
			Help: "ROW COL TEXT - copy text into the buffer",
			Func: func(c *ishell.Context) {
				row, col, err := parseCell(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				n, err := d.Print(row, col, strings.Join(c.Args[2:], " "))
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%d chars\n", n)
			},
		},
		{
			Name: "cell",
			Help: "ROW COL - show a buffered character",
			Func: func(c *ishell.Context) {
				row, col, err := parseCell(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				ch, err := d.Cell(row, col)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%q %#02x\n", ch, ch)
			},
		},
		{
			Name: "flush",
			Help: "repaint the display from the buffer",
			Func: func(c *ishell.Context) {
				if err := d.Flush(); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "cursor",
			Help: "ROW COL - move the hardware cursor",
			Func: func(c *ishell.Context) {
				row, col, err := parseCell(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				if err := d.SetCursor(byte(row), byte(col)); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "backlight",
			Help: "on|off",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
					c.Err(fmt.Errorf("on or off expected"))
					return
				}
				if err := d.SetBacklight(c.Args[0] == "on"); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "show",
			Help: "print the buffer",
			Func: func(c *ishell.Context) {
				buf := d.Buffer()
				c.Println("+" + strings.Repeat("-", i2clcd.Cols) + "+")
				for _, row := range buf {
					c.Println("|" + string(row[:]) + "|")
				}
				c.Println("+" + strings.Repeat("-", i2clcd.Cols) + "+")
			},
		},
		{
			Name: "volts",
			Help: "NAME RAW [BITS] - show an 8-bit (default) ADC reading against 3.3V",
			Func: func(c *ishell.Context) {
				if len(c.Args) < 2 {
					c.Err(fmt.Errorf("NAME RAW expected"))
					return
				}
				raw, err := strconv.ParseUint(c.Args[1], 0, 16)
				if err != nil {
					c.Err(err)
					return
				}
				bits := uint64(8)
				if len(c.Args) > 2 {
					if bits, err = strconv.ParseUint(c.Args[2], 0, 8); err != nil {
						c.Err(err)
						return
					}
				}
				v, err := voltmeter.Volts(uint16(raw), uint(bits), 3.3)
				if err != nil {
					c.Err(err)
					return
				}
				if err := voltmeter.Render(d, c.Args[0], v); err != nil {
					c.Err(err)
				}
			},
		},
	}
}
