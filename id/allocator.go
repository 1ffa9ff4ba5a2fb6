package id

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrAllocatorExhausted is returned when all 65,536 sequence values of the
	// current millisecond are used. It clears on the next clock tick.
	ErrAllocatorExhausted = errors.New("id: allocator exhausted for current millisecond")

	// ErrUnknownKind is returned for kinds outside the declared enumeration.
	ErrUnknownKind = errors.New("id: unknown entity kind")
)

// Clock supplies wall-clock time to allocators.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// Allocator hands out strictly increasing IDs. The (millis, sequence) state is
// the only mutable state and is guarded by mu; the critical section never does I/O.
type Allocator struct {
	clock Clock

	mu         sync.Mutex
	lastMillis uint64
	nextSeq    uint32
}

// NewAllocator creates an allocator reading the given clock.
func NewAllocator(clock Clock) *Allocator {
	if clock == nil {
		clock = SystemClock
	}
	return &Allocator{clock: clock}
}

// Next returns a new ID. If the clock moved backwards the allocator keeps
// issuing from the last seen millisecond, so IDs never regress.
func (a *Allocator) Next() (ID, error) {
	now := a.clock.Now().UnixMilli()

	a.mu.Lock()
	defer a.mu.Unlock()

	ms := a.lastMillis
	if now > 0 && uint64(now) > ms {
		ms = uint64(now)
		a.lastMillis = ms
		a.nextSeq = 0
	}
	if ms > MaxMillis {
		return Nil, fmt.Errorf("id: timestamp %d overflows %d bits", ms, TimestampBits)
	}
	if a.nextSeq > MaxSequence {
		return Nil, ErrAllocatorExhausted
	}

	seq := a.nextSeq
	a.nextSeq++
	return New(ms, uint16(seq)), nil
}

// Last returns the most recently used millisecond. Zero before the first call.
func (a *Allocator) Last() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastMillis
}

// Generator keeps one Allocator per entity kind.
type Generator struct {
	clock      Clock
	allocators [kindCount]*Allocator

	retryWait  time.Duration
	retryLimit time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock sets the clock shared by all kind allocators.
func WithClock(c Clock) GeneratorOption {
	return func(g *Generator) { g.clock = c }
}

// WithRetry sets the wait between attempts after exhaustion and the total
// time Next keeps retrying.
func WithRetry(wait, limit time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.retryWait = wait
		g.retryLimit = limit
	}
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		clock:      SystemClock,
		retryWait:  200 * time.Microsecond,
		retryLimit: time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	for k := KindUser; k < kindCount; k++ {
		g.allocators[k] = NewAllocator(g.clock)
	}
	return g
}

// Allocate returns a new ID for an entity of the given kind, or
// ErrAllocatorExhausted if the current millisecond is used up.
func (g *Generator) Allocate(kind Kind) (ID, error) {
	if !kind.Valid() {
		return Nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
	return g.allocators[kind].Next()
}

// Next is like Allocate but waits out exhaustion, retrying until the clock
// ticks over, the retry limit passes, or ctx is done.
func (g *Generator) Next(ctx context.Context, kind Kind) (ID, error) {
	return backoff.Retry(ctx, func() (ID, error) {
		v, err := g.Allocate(kind)
		if err != nil && !errors.Is(err, ErrAllocatorExhausted) {
			return Nil, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(g.retryWait)),
		backoff.WithMaxElapsedTime(g.retryLimit),
	)
}

// WindowStart returns the smallest ID whose timestamp equals now - d.
// Every entity created within the trailing window d has an ID >= the result.
func (g *Generator) WindowStart(d time.Duration) ID {
	return FromTime(g.clock.Now().Add(-d))
}

// Now returns the generator's current time.
func (g *Generator) Now() time.Time {
	return g.clock.Now()
}
