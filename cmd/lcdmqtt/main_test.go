package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/tstpierre-tc/i2clcd"
	"github.com/tstpierre-tc/i2clcd/i2cmaster"
	"github.com/tstpierre-tc/i2clcd/mailbox"
)

func newDev(t *testing.T) *i2clcd.Dev {
	m, err := i2cmaster.New(&i2ctest.Record{}, nil)
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

func TestRenderTextKeepsQueuedPayloads(t *testing.T) {
	d := newDev(t)
	q := mailbox.NewQueue[[]byte]()
	require.NoError(t, q.Push([]byte("hello ")))
	require.NoError(t, q.Push([]byte("world")))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- renderText(ctx, q, d) }()

	require.Eventually(t, func() bool {
		return row0(d) == "hello world     "
	}, 5*time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
}

func TestRenderTextEmptyPayloadClears(t *testing.T) {
	d := newDev(t)
	q := mailbox.NewQueue[[]byte]()
	require.NoError(t, q.Push([]byte("old")))
	require.NoError(t, q.Push(nil))
	require.NoError(t, q.Push([]byte("new")))
	q.Close()

	require.ErrorIs(t, renderText(context.Background(), q, d), mailbox.ErrClosed)
	require.Equal(t, "new             ", row0(d))
}
