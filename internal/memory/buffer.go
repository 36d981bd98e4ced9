package memory

import (
	"sync"
	"time"
)

// Buffer is a bounded, ordered log of conversation turns. When the bound is
// reached the oldest turn is evicted. It is safe for concurrent readers; the
// owning session serializes writers.
type Buffer struct {
	mu       sync.RWMutex
	maxTurns int
	turns    []Turn
	nextSeq  int
}

// NewBuffer creates a buffer holding at most maxTurns turns.
func NewBuffer(maxTurns int) *Buffer {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Buffer{maxTurns: maxTurns}
}

// Append records a completed turn, evicting the oldest one if the buffer is
// full, and returns the stored turn.
func (b *Buffer) Append(question, answer string) Turn {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := Turn{
		Seq:      b.nextSeq,
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now().UTC(),
	}
	b.nextSeq++

	b.turns = append(b.turns, t)
	if len(b.turns) > b.maxTurns {
		b.turns = append(b.turns[:0], b.turns[1:]...)
	}
	return t
}

// Restore seeds the buffer with previously recorded turns, oldest first.
// Used when rehydrating a session from an external store.
func (b *Buffer) Restore(turns []Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(turns) > b.maxTurns {
		turns = turns[len(turns)-b.maxTurns:]
	}
	b.turns = append(b.turns[:0], turns...)
	if n := len(b.turns); n > 0 {
		b.nextSeq = b.turns[n-1].Seq + 1
	}
}

// Recent returns the last min(n, Len) turns in chronological order. The
// returned slice is a copy; reading never mutates the buffer.
func (b *Buffer) Recent(n int) []Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(b.turns) {
		n = len(b.turns)
	}
	return append([]Turn(nil), b.turns[len(b.turns)-n:]...)
}

// Len returns the number of retained turns.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// MaxTurns returns the retention bound.
func (b *Buffer) MaxTurns() int {
	return b.maxTurns
}

// Clear empties the buffer. The sequence counter is not reset, so turns
// appended later still sort after cleared ones.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = b.turns[:0]
}
