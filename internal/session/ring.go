package session

import (
	"sync"

	"github.com/ashureev/healthchat/internal/domain"
)

// MaxTurns bounds the turns retained per session (10 exchanges).
const MaxTurns = 20

// turnRing is a fixed-size circular buffer of turns. When full, new turns
// overwrite the oldest ones.
type turnRing struct {
	buf     []domain.Turn
	size    int
	head    int // write position
	tail    int // read position
	full    bool
	dropped bool // set once the session has been cleared
	mu      sync.RWMutex
}

func newTurnRing(size int) *turnRing {
	if size <= 0 {
		size = MaxTurns
	}
	return &turnRing{
		buf:  make([]domain.Turn, size),
		size: size,
	}
}

// appendTurns writes turns in order as one unit. It reports false when the
// ring belongs to a cleared session and must not be written to.
func (r *turnRing) appendTurns(turns ...domain.Turn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dropped {
		return false
	}
	for _, t := range turns {
		if r.full {
			r.tail = (r.tail + 1) % r.size
		}
		r.buf[r.head] = t
		r.head = (r.head + 1) % r.size
		if r.head == r.tail {
			r.full = true
		}
	}
	return true
}

// last returns up to n of the most recent turns, oldest first.
func (r *turnRing) last(n int) []domain.Turn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.lenLocked()
	if n > count {
		n = count
	}
	if n <= 0 {
		return []domain.Turn{}
	}

	out := make([]domain.Turn, n)
	start := (r.tail + count - n) % r.size
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%r.size]
	}
	return out
}

func (r *turnRing) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *turnRing) lenLocked() int {
	switch {
	case r.full:
		return r.size
	case r.head >= r.tail:
		return r.head - r.tail
	default:
		return (r.size - r.tail) + r.head
	}
}

// drop empties the ring and marks it unusable.
func (r *turnRing) drop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.head = 0
	r.tail = 0
	r.full = false
	r.dropped = true
	clear(r.buf)
}

func (r *turnRing) isDropped() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}
