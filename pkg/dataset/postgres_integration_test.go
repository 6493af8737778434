package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgresContainer launches a throwaway Postgres container for one
// test, mirroring the shared-container setup the teacher uses for ent
// migrations — here there's no schema isolation to worry about since
// each test gets its own container and database.
func startPostgresContainer(t *testing.T) PostgresConfig {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("forge_test"),
		postgres.WithUsername("forge"),
		postgres.WithPassword("forge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "forge",
		Password: "forge",
		Database: "forge_test",
		SSLMode:  "disable",
	}
}

func TestPostgresStore_StoreAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("requires Docker")
	}
	cfg := startPostgresContainer(t)
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	reading := Reading{
		SensorID:    "temp-1",
		TimestampUS: 1_000_000,
		DataType:    "temperature",
		Payload:     []byte(`{"celsius":21.5}`),
		Quality:     1.0,
	}
	require.NoError(t, store.StoreReading(ctx, reading))

	results, err := store.Query(ctx, Query{
		SensorIDs: []string{"temp-1"},
		StartUS:   0,
		EndUS:     2_000_000,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, reading.SensorID, results[0].SensorID)
	require.Equal(t, reading.DataType, results[0].DataType)
}

func TestPostgresStore_ListSensorsAfterBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("requires Docker")
	}
	cfg := startPostgresContainer(t)
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.StoreBatch(ctx, Batch{Readings: []Reading{
		{SensorID: "a", TimestampUS: 1, DataType: "x", Payload: []byte("{}"), Quality: 1},
		{SensorID: "b", TimestampUS: 1, DataType: "x", Payload: []byte("{}"), Quality: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	sensors, err := store.ListSensors(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, sensors)
}
