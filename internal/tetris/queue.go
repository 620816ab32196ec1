package tetris

import (
	"math/rand"
	"sync"
)

// Generator produces the kinds fed into a Queue.
type Generator interface {
	Next() Kind
}

// RandomGenerator draws each kind uniformly and independently (no bag).
type RandomGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomGenerator returns a uniform generator seeded with seed.
func NewRandomGenerator(seed int64) *RandomGenerator {
	return &RandomGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next random kind.
func (g *RandomGenerator) Next() Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Kinds[g.rng.Intn(len(Kinds))]
}

// SequenceGenerator replays a fixed list of kinds, wrapping around.
type SequenceGenerator struct {
	kinds []Kind
	next  int
}

// NewSequenceGenerator returns a generator cycling through kinds.
func NewSequenceGenerator(kinds ...Kind) *SequenceGenerator {
	return &SequenceGenerator{kinds: kinds}
}

// Next returns the following kind in the sequence.
func (g *SequenceGenerator) Next() Kind {
	if len(g.kinds) == 0 {
		return KindI
	}
	k := g.kinds[g.next%len(g.kinds)]
	g.next++
	return k
}

// Queue is the fixed-depth lookahead of upcoming pieces.
type Queue struct {
	gen   Generator
	items []Kind
}

// NewQueue fills a queue of the given depth from gen.
func NewQueue(gen Generator, depth int) *Queue {
	if depth < 1 {
		depth = QueueDepth
	}
	q := &Queue{gen: gen, items: make([]Kind, 0, depth)}
	for i := 0; i < depth; i++ {
		q.items = append(q.items, gen.Next())
	}
	return q
}

// Pop removes the head and appends one freshly generated kind to the tail.
func (q *Queue) Pop() Kind {
	head := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = q.gen.Next()
	return head
}

// Peek returns a copy of the upcoming kinds, head first.
func (q *Queue) Peek() []Kind {
	return append([]Kind(nil), q.items...)
}

// Len returns the lookahead depth.
func (q *Queue) Len() int {
	return len(q.items)
}
