package replication

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/tetris"
)

// DefaultPublishTimeout bounds a single publish call.
const DefaultPublishTimeout = 2 * time.Second

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Timeout time.Duration
	Logger  *log.Logger
	Clock   func() time.Time
}

// Publisher writes the local player's snapshot to the transport whenever a
// tracked field changes. Publishing runs on its own goroutine and only the
// newest pending snapshot is sent; failures are logged and dropped.
type Publisher struct {
	transport Transport
	key       Key
	timeout   time.Duration
	logger    *log.Logger
	clock     func() time.Time

	mu       sync.Mutex
	last     []byte
	revision uint64
	closed   bool

	pending   chan Snapshot
	stop      chan struct{}
	done      chan struct{}
	ctx       context.Context // cancelled when Close gives up waiting
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPublisher starts a publisher for key.
func NewPublisher(t Transport, key Key, opts PublisherOptions) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPublishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		transport: t,
		key:       key,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		clock:     opts.Clock,
		pending:   make(chan Snapshot, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go p.loop()
	return p
}

// Key returns the record key this publisher owns.
func (p *Publisher) Key() Key { return p.key }

// Update queues st for publication if its tracked fields changed. States older
// than the last one seen are ignored. It never blocks.
func (p *Publisher) Update(st tetris.State) bool {
	snap := FromState(st)
	tracked := snap.tracked()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || (p.last != nil && st.Revision < p.revision) {
		return false
	}
	p.revision = st.Revision
	if bytes.Equal(tracked, p.last) {
		return false
	}
	p.last = tracked

	for {
		select {
		case p.pending <- snap:
			return true
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for {
		select {
		case snap := <-p.pending:
			p.send(snap)
		case <-p.stop:
			select {
			case snap := <-p.pending:
				p.send(snap)
			default:
			}
			return
		}
	}
}

func (p *Publisher) send(snap Snapshot) {
	snap.LastUpdate = p.clock().UnixMilli()
	data, err := snap.Encode()
	if err != nil {
		p.logger.Warn("encode snapshot", "key", p.key, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	if err := p.transport.Publish(ctx, p.key, data); err != nil {
		p.logger.Warn("publish failed", "key", p.key, "error", err)
	}
}

// Close flushes the last pending snapshot, stops the publisher and removes the
// record so peers see the player leave. If ctx ends before the flush, the
// in-flight publish is cancelled and awaited so it cannot land after the
// removal. Safe to call more than once.
func (p *Publisher) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		close(p.stop)
		select {
		case <-p.done:
		case <-ctx.Done():
			p.cancel()
			<-p.done
		}
		p.cancel()
		if rmErr := p.transport.Remove(ctx, p.key); rmErr != nil {
			err = fmt.Errorf("replication: remove %s: %w", p.key, rmErr)
		}
	})
	return err
}
