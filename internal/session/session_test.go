package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/prompt"
)

func testSummary() *dataset.Summary {
	return &dataset.Summary{
		Source:   "sales.csv",
		RowCount: 10,
		Columns: []dataset.ColumnSummary{
			{Name: "age", Type: dataset.TypeNumeric, SampleValues: []string{"21", "34"}, DistinctSamples: 2},
		},
	}
}

func newTestManager(invoker backend.Invoker, sink TurnSink) *Manager {
	return NewManager(ManagerOptions{
		Assembler: prompt.NewAssembler(4000),
		Invoker:   invoker,
		MaxTurns:  10,
		Sink:      sink,
	})
}

func TestAsk_RecordsTurn(t *testing.T) {
	mock := backend.NewMock("forty-two")
	s := newTestManager(mock, nil).Create(testSummary())

	answer, err := s.Ask(context.Background(), "what is the average age?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)

	history := s.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, "what is the average age?", history[0].Question)
	assert.Equal(t, "forty-two", history[0].Answer)
	assert.Equal(t, 0, history[0].Seq)

	// The payload carried the dataset grounding.
	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Summary)
	assert.Equal(t, "sales.csv", calls[0].Summary.Source)
}

func TestAsk_PriorTurnsFlowIntoPayload(t *testing.T) {
	mock := backend.NewMock()
	s := newTestManager(mock, nil).Create(testSummary())

	_, err := s.Ask(context.Background(), "first?")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "second?")
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].RecentTurns)
	require.Len(t, calls[1].RecentTurns, 1)
	assert.Equal(t, "first?", calls[1].RecentTurns[0].Question)
}

func TestAsk_ConcurrentCallIsBusy(t *testing.T) {
	mock := backend.NewMock()
	mock.Block = make(chan struct{})
	s := newTestManager(mock, nil).Create(testSummary())

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "slow question")
		firstDone <- err
	}()

	// Wait for the first ask to reach the invoker.
	require.Eventually(t, func() bool {
		return len(mock.Calls()) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := s.Ask(context.Background(), "impatient question")
	assert.ErrorIs(t, err, ErrBusy)

	close(mock.Block)
	require.NoError(t, <-firstDone)

	// Only the completed ask was recorded; the session is usable again.
	require.Len(t, s.History(10), 1)
	_, err = s.Ask(context.Background(), "follow-up")
	assert.NoError(t, err)
}

func TestAsk_CancellationRecordsNothing(t *testing.T) {
	mock := backend.NewMock()
	mock.Block = make(chan struct{})
	s := newTestManager(mock, nil).Create(testSummary())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, "doomed question")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(mock.Calls()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, s.ID, sessErr.SessionID)
	assert.Equal(t, "invoke", sessErr.Op)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, s.History(10))
	close(mock.Block)
}

func TestAsk_InvokerFailureRecordsNothing(t *testing.T) {
	mock := backend.NewMock()
	upstream := errors.New("provider unavailable")
	mock.Fail(upstream)
	s := newTestManager(mock, nil).Create(testSummary())

	_, err := s.Ask(context.Background(), "question")

	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "invoke", sessErr.Op)
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, s.History(10))
}

func TestAsk_QuestionOverBudget(t *testing.T) {
	m := NewManager(ManagerOptions{
		Assembler: prompt.NewAssembler(5),
		Invoker:   backend.NewMock(),
		MaxTurns:  10,
	})
	s := m.Create(testSummary())

	_, err := s.Ask(context.Background(), "a question far beyond five characters")

	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "assemble", sessErr.Op)
	assert.ErrorIs(t, err, prompt.ErrContextOverflow)
}

func TestAsk_SinkObservesTurns(t *testing.T) {
	type sunk struct {
		sessionID string
		question  string
	}
	var got []sunk
	sink := func(sessionID string, turn memory.Turn) {
		got = append(got, sunk{sessionID: sessionID, question: turn.Question})
	}

	mock := backend.NewMock()
	s := newTestManager(mock, sink).Create(testSummary())

	_, err := s.Ask(context.Background(), "tracked?")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, s.ID, got[0].sessionID)
	assert.Equal(t, "tracked?", got[0].question)
}
