package testutil

import (
	"context"
	"testing"

	"fantasygolf/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Concurrency tests hold one connection per in-flight transaction
const testPoolSize = 50

// TestDatabase is a migrated PostgreSQL container with an open pool
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a PostgreSQL container, applies the migrations and
// opens a pool. The pool and the container are released when t finishes.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fantasygolf_test"),
		postgres.WithUsername("fantasygolf"),
		postgres.WithPassword("fantasygolf"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"fantasygolf.suite": "repository",
			"fantasygolf.test":  t.Name(),
		}),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrationsWithURL(url))

	db, err := database.NewConnection(ctx, url, testPoolSize)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return &TestDatabase{Container: container, DB: db, URL: url}
}
