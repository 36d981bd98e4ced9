package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/prompt"
)

// Session is one conversation over one dataset. It owns its summary and
// conversation buffer exclusively; independent sessions share nothing
// mutable. At most one ask is in flight at a time.
type Session struct {
	ID      string
	summary *dataset.Summary
	mem     *memory.Buffer
	asm     *prompt.Assembler
	invoker backend.Invoker

	// onTurn, when set, observes each recorded turn (mirroring, archiving,
	// metrics). Failures there must not fail the ask.
	onTurn func(memory.Turn)

	busy atomic.Bool

	mu             sync.Mutex
	lastActivityAt time.Time
	createdAt      time.Time
}

type result struct {
	answer string
	err    error
}

// Summary returns the dataset summary the session is grounded on.
func (s *Session) Summary() *dataset.Summary {
	return s.summary
}

// History returns the last n retained turns in chronological order.
func (s *Session) History(n int) []memory.Turn {
	return s.mem.Recent(n)
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// LastActivityAt returns the time of the last ask or creation.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivityAt = time.Now().UTC()
	s.mu.Unlock()
}

// Ask assembles context, invokes the model backend, and on success records
// the turn before returning the answer. A concurrent call returns ErrBusy.
// On cancellation or any downstream failure nothing is recorded.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer s.busy.Store(false)

	s.touch()

	payload, err := s.asm.Assemble(s.summary, s.mem.Recent(s.mem.MaxTurns()), question)
	if err != nil {
		return "", &SessionError{SessionID: s.ID, Op: "assemble", Err: err}
	}

	resCh := make(chan result, 1)
	go func() {
		answer, err := s.invoker.Invoke(ctx, payload)
		resCh <- result{answer: answer, err: err}
	}()

	select {
	case <-ctx.Done():
		// Abandon the in-flight invoke; its late answer is dropped and the
		// question/answer pair is not recorded.
		return "", &SessionError{SessionID: s.ID, Op: "invoke", Err: ctx.Err()}
	case res := <-resCh:
		if res.err != nil {
			return "", &SessionError{SessionID: s.ID, Op: "invoke", Err: res.err}
		}
		turn := s.mem.Append(question, res.answer)
		if s.onTurn != nil {
			s.onTurn(turn)
		}
		s.touch()
		return res.answer, nil
	}
}
