package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"zizyhub/core/types"
)

func evt(kind string) Event {
	return Wrap(&types.Event{Type: kind, Attributes: map[string]string{"k": kind}})
}

func TestBusHistoryAndSubscribe(t *testing.T) {
	bus := NewBus(2)
	bus.Emit(evt("a.one"))
	bus.Emit(evt("a.two"))
	bus.Emit(evt("a.three"))

	hist := bus.History()
	require.Len(t, hist, 2)
	require.Equal(t, uint64(2), hist[0].Seq)
	require.Equal(t, "a.three", hist[1].Event.Type)
	require.Equal(t, uint64(3), bus.Seq())

	ch, backlog, cancel := bus.Subscribe(2, 4)
	defer cancel()
	require.Len(t, backlog, 1)
	require.Equal(t, uint64(3), backlog[0].Seq)

	bus.Emit(evt("a.four"))
	rec := <-ch
	require.Equal(t, uint64(4), rec.Seq)
	require.Equal(t, "a.four", rec.Event.Attr("k"))
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(0)
	ch, _, cancel := bus.Subscribe(0, 1)
	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	bus.Emit(evt("after.cancel"))
}

func TestBufferFlush(t *testing.T) {
	var buf Buffer
	buf.Emit(evt("x.one"))
	buf.Emit(nil)
	buf.Emit(evt("x.two"))
	require.Len(t, buf.Events(), 2)

	bus := NewBus(8)
	buf.Flush(bus)
	require.Empty(t, buf.Events())
	require.Equal(t, uint64(2), bus.Seq())

	buf.Emit(evt("x.three"))
	buf.Reset()
	buf.Flush(bus)
	require.Equal(t, uint64(2), bus.Seq())
}

func TestPayloadOfForeignEvent(t *testing.T) {
	p := Payload(plain("custom.kind"))
	require.Equal(t, "custom.kind", p.Type)
	require.Nil(t, Payload(nil))
}

type plain string

func (p plain) EventType() string { return string(p) }
