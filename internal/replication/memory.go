package replication

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// MemoryTransport is an in-process Transport. It backs local duels, the SSH
// arcade rooms and the relay server's record store.
type MemoryTransport struct {
	mu      sync.Mutex
	records map[Key][]byte
	subs    map[Key]map[uint64]*subscriber
	nextID  uint64
	closed  bool
}

type delivery struct {
	data    []byte
	removed bool
}

type subscriber struct {
	fn       Handler
	ch       chan delivery
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryTransport creates an empty transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		records: make(map[Key][]byte),
		subs:    make(map[Key]map[uint64]*subscriber),
	}
}

// Publish stores data as the record for key and fans it out.
func (t *MemoryTransport) Publish(ctx context.Context, key Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := append([]byte(nil), data...)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.records[key] = rec
	for _, s := range t.subs[key] {
		s.enqueue(delivery{data: rec})
	}
	return nil
}

// Remove deletes the record for key and notifies subscribers.
func (t *MemoryTransport) Remove(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if _, ok := t.records[key]; !ok {
		return nil
	}
	delete(t.records, key)
	for _, s := range t.subs[key] {
		s.enqueue(delivery{removed: true})
	}
	return nil
}

// Subscribe registers fn for key. The current record, if any, is delivered
// first.
func (t *MemoryTransport) Subscribe(ctx context.Context, key Key, fn Handler) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscriber{
		fn:   fn,
		ch:   make(chan delivery, subscriberBuffer),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.nextID++
	id := t.nextID
	if t.subs[key] == nil {
		t.subs[key] = make(map[uint64]*subscriber)
	}
	t.subs[key][id] = s
	if rec, ok := t.records[key]; ok {
		s.enqueue(delivery{data: rec})
	}
	t.mu.Unlock()

	go s.run()

	return func() {
		t.mu.Lock()
		if subs := t.subs[key]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(t.subs, key)
			}
		}
		t.mu.Unlock()
		s.stop()
	}, nil
}

// Get returns the stored record for key.
func (t *MemoryTransport) Get(key Key) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[key]
	return rec, ok
}

// Keys lists the keys that currently hold a record.
func (t *MemoryTransport) Keys() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]Key, 0, len(t.records))
	for k := range t.records {
		keys = append(keys, k)
	}
	return keys
}

// Close stops every subscriber. Further calls fail with ErrClosed.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var subs []*subscriber
	for _, m := range t.subs {
		for _, s := range m {
			subs = append(subs, s)
		}
	}
	t.subs = nil
	t.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return nil
}

// enqueue never blocks: when the buffer is full the oldest delivery is
// dropped, so the newest record always reaches the handler.
func (s *subscriber) enqueue(d delivery) {
	for {
		select {
		case s.ch <- d:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.ch:
			if d.removed {
				s.fn(nil)
			} else {
				s.fn(d.data)
			}
		}
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
