package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/prompt"
)

func testPayload() *prompt.Payload {
	return &prompt.Payload{
		Summary: &dataset.Summary{
			Source:   "sales.csv",
			RowCount: 3,
			Columns: []dataset.ColumnSummary{
				{Name: "age", Type: dataset.TypeNumeric, SampleValues: []string{"21", "34"}},
			},
		},
		RecentTurns: []memory.Turn{
			{Seq: 0, Question: "how many rows?", Answer: "three"},
		},
		Question: "what is the average age?",
	}
}

func TestOpenAI_Invoke(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"27.5"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOptions{Endpoint: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini"})

	answer, err := o.Invoke(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "27.5", answer)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)

	// system message (preamble + summary), one recorded turn, then the question
	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, "Dataset sales.csv: 3 rows, 1 columns.")
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "how many rows?", gotReq.Messages[1].Content)
	assert.Equal(t, "assistant", gotReq.Messages[2].Role)
	assert.Equal(t, "three", gotReq.Messages[2].Content)
	assert.Equal(t, "user", gotReq.Messages[3].Role)
	assert.Equal(t, "what is the average age?", gotReq.Messages[3].Content)
}

func TestOpenAI_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOptions{Endpoint: srv.URL})
	_, err := o.Invoke(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestOpenAI_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOptions{Endpoint: srv.URL, APIKey: "bad"})
	_, err := o.Invoke(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOptions{Endpoint: srv.URL})
	_, err := o.Invoke(context.Background(), testPayload())
	assert.Error(t, err)
}

func TestOpenAI_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOpenAI(OpenAIOptions{Endpoint: srv.URL})
	_, err := o.Invoke(ctx, testPayload())
	assert.ErrorIs(t, err, context.Canceled)
}
