//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// startPostgres launches a disposable PostgreSQL container and returns a
// store connected to it. PostgreSQL logs "database system is ready" twice
// during startup (bootstrap and fully ready), so we wait for 2 occurrences.
func startPostgres(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("patchbay_test"),
		postgres.WithUsername("patchbay_test"),
		postgres.WithPassword("patchbay_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	st, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "patchbay_test",
			User:     "patchbay_test",
			Password: "patchbay_test",
			SSLMode:  "disable",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresStore(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	t.Run("Healthcheck", func(t *testing.T) {
		assert.NoError(t, st.Healthcheck(ctx))
	})

	t.Run("BlockGraphRoundTrip", func(t *testing.T) {
		outputs := `["image"]`
		blur := &models.BlockType{Name: "Blur", Command: "vips", Outputs: &outputs}
		require.NoError(t, st.CreateBlockType(ctx, blur))
		preview := &models.BlockType{Name: models.BlockNameImagePreview}
		require.NoError(t, st.CreateBlockType(ctx, preview))

		block := &models.BlockInstance{IDProject: 1, IDBlock: preview.ID}
		require.NoError(t, st.CreateBlock(ctx, block))

		terminal, err := st.TerminalBlock(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, block.ID, terminal.ID)
	})

	t.Run("CacheIndexNewestWins", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		require.NoError(t, st.InsertCache(ctx, &models.CacheEntry{
			UUID: "pg-old", IDBlock: 7,
			ParametersJSON: `{"sigma":2}`, InputUUIDsJSON: `["in"]`,
			CreationTimestamp: base,
		}))
		require.NoError(t, st.InsertCache(ctx, &models.CacheEntry{
			UUID: "pg-new", IDBlock: 7,
			ParametersJSON: `{"sigma":2}`, InputUUIDsJSON: `["in"]`,
			CreationTimestamp: base.Add(time.Minute),
		}))

		entry, err := st.LookupCache(ctx, 7, `{"sigma":2}`, `["in"]`)
		require.NoError(t, err)
		assert.Equal(t, "pg-new", entry.UUID)
	})

	t.Run("DuplicateUUIDUsesPostgresConstraintError", func(t *testing.T) {
		require.NoError(t, st.CreateInputImage(ctx, &models.InputImage{
			UUID:             "pg-img",
			OriginalFilename: "cat.png",
			UploadTimestamp:  time.Now(),
		}))
		err := st.CreateInputImage(ctx, &models.InputImage{
			UUID:             "pg-img",
			OriginalFilename: "other.png",
		})
		assert.ErrorIs(t, err, models.ErrInputImageExists)
	})
}
