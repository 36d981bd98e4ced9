//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/datasen-project/datasen/internal/api"
	"github.com/datasen-project/datasen/internal/archive"
	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/database"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/prompt"
	"github.com/datasen-project/datasen/internal/session"
)

type TestEnv struct {
	Pool    *pgxpool.Pool
	Repo    *archive.Repository
	Server  *httptest.Server
	Manager *session.Manager
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "datasen_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/datasen_test?sslmode=disable", pgHost, pgPort.Port())

	if err := database.RunMigrations(dsn, getMigrationsPath()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	repo := archive.NewRepository(pool)

	// Sessions wired the way cmd/api wires them: a mock model backend and a
	// sink that archives every completed turn.
	manager := session.NewManager(session.ManagerOptions{
		Assembler: prompt.NewAssembler(4000),
		Invoker:   backend.NewMock(),
		MaxTurns:  10,
		Sink: func(sessionID string, turn memory.Turn) {
			sinkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Append(sinkCtx, sessionID, turn); err != nil {
				log.Printf("archiving turn: %v", err)
			}
		},
	})

	handler := api.NewSessionHandler(api.SessionHandlerOptions{
		Manager:     manager,
		Archive:     repo,
		DatasetOpts: dataset.Options{SampleSize: 100},
		MaxTurns:    10,
	})

	server := httptest.NewServer(api.NewRouter(pool, nil, api.RouterConfig{}, handler))
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:    pool,
		Repo:    repo,
		Server:  server,
		Manager: manager,
	}
	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func WriteDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := t.TempDir() + "/" + name
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
	return path
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
