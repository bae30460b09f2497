/*
Copyright 2024 Tim St. Pierre
Shows MQTT messages on a lcd1602 character display
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/tstpierre-tc/i2clcd"
	"github.com/tstpierre-tc/i2clcd/i2cmaster"
	"github.com/tstpierre-tc/i2clcd/mailbox"
	"github.com/tstpierre-tc/i2clcd/voltmeter"
)

var (
	broker   = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL.")
	topic    = flag.String("topic", "lcd/text", "Topic to subscribe to.")
	mode     = flag.String("mode", "text", "text: stream payloads onto the screen; volts: payloads are raw ADC readings.")
	name     = flag.String("name", "A0", "Channel name shown in volts mode.")
	bits     = flag.Uint("bits", 12, "ADC resolution in volts mode.")
	vref     = flag.Float64("vref", 3.3, "ADC reference voltage in volts mode.")
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
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run() error {
	strategy, err := i2clcd.ParseFlushStrategy(*flushStr)
	if err != nil {
		return err
	}
	opts := i2clcd.DefaultOpts
	opts.I2CAddr = uint16(*addr)
	opts.Flush = strategy

	d, bus, err := i2clcd.Open(*busName, &i2cmaster.DefaultOpts, &opts)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect(*broker)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	switch *mode {
	case "text":
		return streamText(ctx, client, d)
	case "volts":
		return showVolts(ctx, client, d)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func connect(url string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(url).
		SetAutoReconnect(true).
		SetCleanSession(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Infof("connected to %s", url)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warnf("connection lost: %v", err)
	})
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// subscribe hands every payload to deliver. The paho callback must not
// block on the display, which takes hundreds of milliseconds per flush.
func subscribe[T any](client paho.Client, deliver func(T) error, decode func([]byte) (T, error)) error {
	token := client.Subscribe(*topic, 0, func(_ paho.Client, msg paho.Message) {
		v, err := decode(msg.Payload())
		if err != nil {
			log.Warnf("%s: %v", msg.Topic(), err)
			return
		}
		if err := deliver(v); err != nil {
			log.Debugf("%s: %v", msg.Topic(), err)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	log.Infof("subscribed to %s", *topic)
	return nil
}

// streamText writes each payload onto the screen after the previous one.
// An empty payload clears the screen.
func streamText(ctx context.Context, client paho.Client, d *i2clcd.Dev) error {
	q := mailbox.NewQueue[[]byte]()
	defer q.Close()
	if err := subscribe(client, q.Push, func(p []byte) ([]byte, error) {
		return append([]byte(nil), p...), nil
	}); err != nil {
		return err
	}
	return renderText(ctx, q, d)
}

// renderText drains q onto the display. Payloads that arrive during a
// repaint wait in the queue, none are dropped.
func renderText(ctx context.Context, q *mailbox.Queue[[]byte], d *i2clcd.Dev) error {
	con := i2clcd.NewConsole(d)
	for {
		payloads, err := q.Take(ctx)
		if err != nil {
			return err
		}
		for _, p := range payloads {
			if len(p) == 0 {
				if err := d.Clear(); err != nil {
					return err
				}
				con = i2clcd.NewConsole(d)
				continue
			}
			if _, err := con.Write(p); err != nil {
				return err
			}
		}
	}
}

func showVolts(ctx context.Context, client paho.Client, d *i2clcd.Dev) error {
	box := mailbox.New[uint16]()
	defer box.Close()
	if err := subscribe(client, box.Publish, func(p []byte) (uint16, error) {
		raw, err := strconv.ParseUint(strings.TrimSpace(string(p)), 0, 16)
		return uint16(raw), err
	}); err != nil {
		return err
	}
	m := &voltmeter.Monitor{
		Display:  d,
		Name:     *name,
		Bits:     *bits,
		VRef:     *vref,
		Readings: box,
	}
	return m.Run(ctx)
}
