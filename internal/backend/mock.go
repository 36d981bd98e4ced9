package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/datasen-project/datasen/internal/prompt"
)

// Mock is a scripted invoker for tests and for running the service without
// a model provider. With no script it echoes a canned line per question.
type Mock struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []*prompt.Payload

	// Block, when set, is closed by the test to release in-flight invokes.
	Block chan struct{}
}

// NewMock creates a mock invoker that replays the given replies in order.
func NewMock(replies ...string) *Mock {
	return &Mock{replies: replies}
}

// Fail makes every subsequent invoke return err.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the payloads seen so far.
func (m *Mock) Calls() []*prompt.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*prompt.Payload(nil), m.calls...)
}

func (m *Mock) Invoke(ctx context.Context, p *prompt.Payload) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, p)
	err := m.err
	var reply string
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	} else {
		reply = fmt.Sprintf("mock answer to: %s", p.Question)
	}
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return reply, nil
}
