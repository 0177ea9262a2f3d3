package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgresStore starts a throwaway PostgreSQL container and opens a store on
// it. Set TASKPOOL_PG_TESTS=1 to run; Docker must be available.
func postgresStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TASKPOOL_PG_TESTS") != "1" {
		t.Skip("set TASKPOOL_PG_TESTS=1 to run PostgreSQL tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "taskpool",
			"POSTGRES_PASSWORD": "taskpool",
			"POSTGRES_DB":       "taskpool",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://taskpool:taskpool@%s:%s/taskpool?sslmode=disable", host, port.Port())
	s, err := Open(ctx, Options{Driver: DriverPostgres, DSN: dsn})
	require.NoError(t, err, "open store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgres(t *testing.T) {
	s := postgresStore(t)
	ctx := context.Background()
	assert.Equal(t, DriverPostgres, s.Driver())

	t.Run("claim is conditional", func(t *testing.T) {
		task := createTask(t, s, nil)
		now := Now()

		var first, second bool
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			if first, err = tx.ClaimTask(ctx, task.ID, "alice", now); err != nil {
				return err
			}
			second, err = tx.ClaimTask(ctx, task.ID, "bob", now)
			return err
		}))
		assert.True(t, first)
		assert.False(t, second)

		got, err := s.GetTask(ctx, testOrg, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.ClaimedBy)
		assert.Equal(t, StatusInProgress, got.Status)
	})

	t.Run("details round trip", func(t *testing.T) {
		task := createTask(t, s, nil)
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			return tx.AppendActivity(ctx, &ActivityEntry{
				TaskID:      task.ID,
				Action:      ActionClaimed,
				PerformedBy: "alice",
				Details:     JSONMap{"note": "first"},
			})
		}))
		entries, err := s.Activity(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "first", entries[0].Details["note"])
	})

	t.Run("stats", func(t *testing.T) {
		st, err := s.Stats(ctx, testOrg, "alice", Now())
		require.NoError(t, err)
		assert.Equal(t, 1, st.MyClaimed)
	})
}
