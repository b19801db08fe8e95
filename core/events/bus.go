package events

import (
	"sync"

	"zizyhub/core/types"
	"zizyhub/observability"
)

// Record is a committed event tagged with its position in the stream.
type Record struct {
	Seq   uint64       `json:"seq"`
	Event *types.Event `json:"event"`
}

// Bus fans committed events out to subscribers and keeps a bounded history
// so late subscribers can catch up from a cursor.
type Bus struct {
	mu          sync.RWMutex
	seq         uint64
	history     []Record
	historySize int
	nextID      uint64
	subs        map[uint64]chan Record
}

// NewBus constructs a bus retaining up to historySize records.
func NewBus(historySize int) *Bus {
	if historySize <= 0 {
		historySize = 1024
	}
	return &Bus{historySize: historySize, subs: make(map[uint64]chan Record)}
}

// Emit implements Emitter. Slow subscribers miss events rather than block the writer.
func (b *Bus) Emit(evt Event) {
	payload := Payload(evt)
	if b == nil || payload == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	rec := Record{Seq: b.seq, Event: payload.Clone()}
	b.history = append(b.history, rec)
	if len(b.history) > b.historySize {
		b.history = append([]Record(nil), b.history[len(b.history)-b.historySize:]...)
	}
	observability.Events().RecordPublished(payload.Type)
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			observability.Events().RecordDropped()
		}
	}
}

// Subscribe registers a listener. The returned backlog holds retained records
// after the cursor; cancel must be called to release the channel.
func (b *Bus) Subscribe(after uint64, buffer int) (<-chan Record, []Record, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Record, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	observability.Events().SetSubscribers(len(b.subs))
	backlog := make([]Record, 0)
	for _, rec := range b.history {
		if rec.Seq > after {
			backlog = append(backlog, rec)
		}
	}
	b.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			observability.Events().SetSubscribers(len(b.subs))
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, backlog, cancel
}

// History returns a copy of the retained records.
func (b *Bus) History() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Record(nil), b.history...)
}

// Seq returns the sequence number of the last emitted record.
func (b *Bus) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Buffer collects events for a single operation so they can be published only
// once the operation commits.
type Buffer struct {
	events []Event
}

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events.
func (b *Buffer) Events() []Event { return append([]Event(nil), b.events...) }

// Flush forwards buffered events to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if dst != nil {
		for _, evt := range b.events {
			dst.Emit(evt)
		}
	}
	b.events = b.events[:0]
}

// Reset drops buffered events.
func (b *Buffer) Reset() { b.events = b.events[:0] }
