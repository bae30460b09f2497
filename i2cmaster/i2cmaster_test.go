package i2cmaster

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*fakeI2C)(nil)

// fakeI2C fails or blocks on demand.
type fakeI2C struct {
	mu      sync.Mutex
	err     error
	release chan struct{}
	sent    []byte
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, w...)
	return f.err
}

func TestTransmitByteRecordsSingleByte(t *testing.T) {
	rec := &i2ctest.Record{}
	m, err := New(rec, nil)
	require.NoError(t, err)

	require.NoError(t, m.TransmitByte(0x27, 0xA5))
	require.NoError(t, m.TransmitByte(0x27, 0x08))

	require.Equal(t, []i2ctest.IO{
		{Addr: 0x27, W: []byte{0xA5}},
		{Addr: 0x27, W: []byte{0x08}},
	}, rec.Ops)
}

func TestTransmitByteNack(t *testing.T) {
	busErr := errors.New("remote I/O error")
	var results []Result
	m := NewTinyGo(&fakeI2C{err: busErr}, &Opts{
		OnResult: func(addr uint16, data byte, err error) {
			results = append(results, ResultOf(err))
		},
	})

	err := m.TransmitByte(0x27, 0x01)
	require.ErrorIs(t, err, ErrNoAcknowledge)
	require.ErrorIs(t, err, busErr)
	require.Equal(t, []Result{Nack}, results)

	// The bus is free again after a NACK.
	m.bus = &fakeI2C{}
	require.NoError(t, m.TransmitByte(0x27, 0x01))
	require.Equal(t, []Result{Nack, Ack}, results)
}

func TestTransmitByteTimeoutKeepsBusBusy(t *testing.T) {
	f := &fakeI2C{release: make(chan struct{})}
	m := NewTinyGo(f, &Opts{AckTimeout: 5 * time.Millisecond})

	err := m.TransmitByte(0x27, 0x10)
	require.ErrorIs(t, err, ErrBusTimeout)

	err = m.TransmitByte(0x27, 0x20)
	require.ErrorIs(t, err, ErrBusBusy)

	close(f.release)
	require.Eventually(t, func() bool {
		return m.TransmitByte(0x27, 0x30) == nil
	}, time.Second, time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, []byte{0x10, 0x30}, f.sent)
}

func TestTransmitByteWithoutTimeout(t *testing.T) {
	f := &fakeI2C{}
	m := NewTinyGo(f, &Opts{})
	require.NoError(t, m.TransmitByte(0x3F, 0xFF))
	require.Equal(t, []byte{0xFF}, f.sent)
}

// speedBus records the clock set through SetSpeed.
type speedBus struct {
	i2ctest.Record
	speed physic.Frequency
}

func (s *speedBus) SetSpeed(f physic.Frequency) error {
	s.speed = f
	return nil
}

func TestNewSetsSpeed(t *testing.T) {
	b := &speedBus{}
	_, err := New(b, &Opts{Speed: 100 * physic.KiloHertz})
	require.NoError(t, err)
	require.Equal(t, 100*physic.KiloHertz, b.speed)

	b = &speedBus{}
	_, err = New(b, &Opts{})
	require.NoError(t, err)
	require.Zero(t, b.speed)
}

func TestBackToBackTransmitsWithAckTimeout(t *testing.T) {
	f := &fakeI2C{}
	m := NewTinyGo(f, &Opts{AckTimeout: time.Second})
	for i := 0; i < 20000; i++ {
		require.NoError(t, m.TransmitByte(0x27, byte(i)), "transmit %d", i)
	}
	require.Len(t, f.sent, 20000)

	rec := &i2ctest.Record{}
	m, err := New(rec, nil)
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		require.NoError(t, m.TransmitByte(0x27, byte(i)), "transmit %d", i)
	}
	require.Len(t, rec.Ops, 2000)
}

func TestResultString(t *testing.T) {
	require.Equal(t, "ACK", Ack.String())
	require.Equal(t, "NACK", Nack.String())
	require.Equal(t, Ack, ResultOf(nil))
	require.Equal(t, Nack, ResultOf(ErrBusBusy))
}
