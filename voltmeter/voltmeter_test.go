package voltmeter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/tstpierre-tc/i2clcd"
	"github.com/tstpierre-tc/i2clcd/i2cmaster"
	"github.com/tstpierre-tc/i2clcd/mailbox"
)

func newDev(t *testing.T) *i2clcd.Dev {
	m, err := i2cmaster.New(&i2ctest.Record{}, &i2cmaster.Opts{})
	require.NoError(t, err)
	opts := i2clcd.DefaultOpts
	opts.Sleep = func(time.Duration) {}
	d, err := i2clcd.New(m, &opts)
	require.NoError(t, err)
	return d
}

func row0(d *i2clcd.Dev) string {
	buf := d.Buffer()
	return string(buf[0][:])
}

func TestAverage(t *testing.T) {
	require.Equal(t, uint16(2), Average4([4]uint16{1, 2, 3, 4}))
	require.Equal(t, uint16(4095), Average4([4]uint16{4095, 4095, 4095, 4095}))

	var mem [16]uint16
	for i := range mem {
		mem[i] = uint16(i / 4 * 100)
	}
	require.Equal(t, [4]uint16{0, 100, 200, 300}, AverageChannels(mem))
}

func TestVolts(t *testing.T) {
	v, err := Volts(4095, 12, 2.5)
	require.NoError(t, err)
	require.Equal(t, 2.5, v)

	v, err = Volts(0, 8, 3.3)
	require.NoError(t, err)
	require.Zero(t, v)

	for _, bits := range []uint{0, 17, 64} {
		_, err := Volts(1, bits, 3.3)
		require.ErrorIs(t, err, ErrResolution, "bits %d", bits)
	}
}

func mustVolts(t *testing.T, raw uint16, bits uint, vref float64) float64 {
	v, err := Volts(raw, bits, vref)
	require.NoError(t, err)
	return v
}

func TestFormat(t *testing.T) {
	for _, tc := range []struct {
		v    float64
		want string
	}{
		{0, "0,000"},
		{2.5, "2,500"},
		{1.2349, "1,234"},
		{0.0019, "0,001"},
		{-1, "0,000"},
		{math.NaN(), "0,000"},
		{12, "9,999"},
		{math.Inf(1), "9,999"},
		{mustVolts(t, 128, 8, 3.3), "1,656"},
		{mustVolts(t, 64, 8, 3.3), "0,828"},
	} {
		require.Equal(t, tc.want, Format(tc.v), "%v", tc.v)
		require.Len(t, Format(tc.v), 5)
	}
}

func TestLine(t *testing.T) {
	require.Equal(t, "A1=2,500V", Line("A1", 2.5))
	require.Equal(t, "A =0,500V", Line("A", 0.5))
	require.Equal(t, "A1=0,500V", Line("A1x", 0.5))
}

func TestRender(t *testing.T) {
	d := newDev(t)
	_, err := d.Print(0, 0, "stale stale stale")
	require.NoError(t, err)
	require.NoError(t, Render(d, "A1", 2.5))
	require.Equal(t, "A1=2,500V       ", row0(d))
}

func TestMonitor(t *testing.T) {
	d := newDev(t)
	readings := mailbox.New[uint16]()
	m := &Monitor{Display: d, Name: "A1", Bits: 8, VRef: 3.3, Readings: readings}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	require.NoError(t, readings.Publish(128))
	require.Eventually(t, func() bool {
		return row0(d) == "A1=1,656V       "
	}, 5*time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
}

func TestMonitorRejectsResolution(t *testing.T) {
	m := &Monitor{Display: newDev(t), Name: "A0", Bits: 0, VRef: 3.3, Readings: mailbox.New[uint16]()}
	require.ErrorIs(t, m.Run(context.Background()), ErrResolution)
}

func TestMonitorStopsOnClose(t *testing.T) {
	readings := mailbox.New[uint16]()
	readings.Close()
	m := &Monitor{Display: newDev(t), Name: "A0", Bits: 12, VRef: 3.3, Readings: readings}
	require.NoError(t, m.Run(context.Background()))
}
