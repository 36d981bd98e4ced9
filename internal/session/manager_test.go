package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/memory"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)

	s := m.Create(testSummary())
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManager_GetUnknown(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)

	_, err := m.Get("no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_End(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)
	s := m.Create(testSummary())

	require.NoError(t, m.End(s.ID))
	assert.Equal(t, 0, m.Count())

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.End(s.ID), ErrNotFound)
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)
	s1 := m.Create(testSummary())
	s2 := m.Create(testSummary())

	require.NotEqual(t, s1.ID, s2.ID)

	_, err := s1.Ask(context.Background(), "only here?")
	require.NoError(t, err)

	assert.Len(t, s1.History(10), 1)
	assert.Empty(t, s2.History(10))
}

func TestManager_ResumeRehydratesHistory(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)

	mirrored := []memory.Turn{
		{Seq: 3, Question: "old question", Answer: "old answer"},
	}
	s := m.Resume("11111111-2222-3333-4444-555555555555", testSummary(), mirrored)

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", s.ID)
	history := s.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, "old question", history[0].Question)

	// New turns continue the mirrored sequence.
	_, err := s.Ask(context.Background(), "new question")
	require.NoError(t, err)
	history = s.History(10)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[1].Seq)
}

func TestManager_ResumeKeepsLiveSession(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)

	const id = "11111111-2222-3333-4444-555555555555"
	s := m.Resume(id, testSummary(), nil)
	_, err := s.Ask(context.Background(), "already underway")
	require.NoError(t, err)

	// A second resume under the same ID must not replace the live session
	// or discard its buffer.
	again := m.Resume(id, testSummary(), []memory.Turn{{Seq: 9, Question: "stale mirror"}})
	assert.Same(t, s, again)

	history := again.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, "already underway", history[0].Question)
	assert.Equal(t, 1, m.Count())
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	m := NewManager(ManagerOptions{
		Invoker:           backend.NewMock(),
		MaxTurns:          10,
		InactivityTimeout: time.Minute,
	})

	idle := m.Create(testSummary())
	fresh := m.Create(testSummary())

	var expired []string
	m.SetExpireHook(func(s *Session) { expired = append(expired, s.ID) })

	idle.mu.Lock()
	idle.lastActivityAt = time.Now().UTC().Add(-2 * time.Minute)
	idle.mu.Unlock()

	m.sweep()

	assert.Equal(t, 1, m.Count())
	_, err := m.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{idle.ID}, expired)
}

func TestManager_AskRefreshesActivity(t *testing.T) {
	m := newTestManager(backend.NewMock(), nil)
	s := m.Create(testSummary())

	before := s.LastActivityAt()
	time.Sleep(5 * time.Millisecond)

	_, err := s.Ask(context.Background(), "still here")
	require.NoError(t, err)

	assert.True(t, s.LastActivityAt().After(before))
}
