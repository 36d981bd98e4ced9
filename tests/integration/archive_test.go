//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasen-project/datasen/internal/memory"
)

func TestArchive_AppendAndList(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	for i := 0; i < 5; i++ {
		turn := memory.Turn{
			Seq:      i,
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
			AskedAt:  time.Now().UTC(),
		}
		require.NoError(t, env.Repo.Append(ctx, sessionID, turn))
	}

	// The window query keeps the newest N, returned oldest first.
	turns, err := env.Repo.ListBySession(ctx, sessionID, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, 2, turns[0].Seq)
	assert.Equal(t, 4, turns[2].Seq)
	assert.Equal(t, "question 2", turns[0].Question)

	turns, err = env.Repo.ListBySession(ctx, sessionID, 100)
	require.NoError(t, err)
	assert.Len(t, turns, 5)
}

func TestArchive_AppendIsIdempotent(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	first := memory.Turn{Seq: 0, Question: "q", Answer: "original", AskedAt: time.Now().UTC()}
	require.NoError(t, env.Repo.Append(ctx, sessionID, first))

	// A replayed sink delivery must neither fail nor overwrite.
	replay := first
	replay.Answer = "replayed"
	require.NoError(t, env.Repo.Append(ctx, sessionID, replay))

	turns, err := env.Repo.ListBySession(ctx, sessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "original", turns[0].Answer)
}

func TestArchive_SessionsIsolated(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	first, second := uuid.NewString(), uuid.NewString()

	require.NoError(t, env.Repo.Append(ctx, first, memory.Turn{Seq: 0, Question: "mine", AskedAt: time.Now().UTC()}))
	require.NoError(t, env.Repo.Append(ctx, second, memory.Turn{Seq: 0, Question: "theirs", AskedAt: time.Now().UTC()}))

	turns, err := env.Repo.ListBySession(ctx, first, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "mine", turns[0].Question)
}

func TestArchive_DeleteSession(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	require.NoError(t, env.Repo.Append(ctx, sessionID, memory.Turn{Seq: 0, Question: "q", AskedAt: time.Now().UTC()}))
	require.NoError(t, env.Repo.DeleteSession(ctx, sessionID))

	turns, err := env.Repo.ListBySession(ctx, sessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestArchive_HistoryEndpoint(t *testing.T) {
	env := SetupTestEnv(t)

	path := WriteDataset(t, "people.csv", "age,name\n1,a\n2,b\n")
	resp := DoRequest(t, env, "POST", "/api/v1/sessions", map[string]string{"dataset_path": path})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := ParseResponse(t, resp)["data"].(map[string]any)
	sessionID := created["session_id"].(string)

	for _, q := range []string{"first question", "second question"} {
		resp = DoRequest(t, env, "POST", fmt.Sprintf("/api/v1/sessions/%s/ask", sessionID),
			map[string]string{"question": q})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ParseResponse(t, resp) // drain body
	}

	// Archived history matches the conversation, oldest first.
	resp = DoRequest(t, env, "GET", fmt.Sprintf("/api/v1/sessions/%s/history?source=archive", sessionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	turns := ParseResponse(t, resp)["data"].([]any)
	require.Len(t, turns, 2)
	assert.Equal(t, "first question", turns[0].(map[string]any)["question"])
	assert.Equal(t, "second question", turns[1].(map[string]any)["question"])

	// n limits to the newest turns.
	resp = DoRequest(t, env, "GET", fmt.Sprintf("/api/v1/sessions/%s/history?source=archive&n=1", sessionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	turns = ParseResponse(t, resp)["data"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, "second question", turns[0].(map[string]any)["question"])

	// The archive outlives the in-process session.
	resp = DoRequest(t, env, "DELETE", fmt.Sprintf("/api/v1/sessions/%s", sessionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ParseResponse(t, resp) // drain body

	ctx := context.Background()
	archived, err := env.Repo.ListBySession(ctx, sessionID, 10)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}
