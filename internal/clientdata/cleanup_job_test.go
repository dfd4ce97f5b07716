package clientdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), StaleRetention, zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), time.Hour, zerolog.Nop())

	now := time.Now()
	_, err := db.Exec("INSERT INTO current_prices (ticker, data, expires_at) VALUES (?, '{}', ?), (?, '{}', ?)",
		"OLD", now.Add(-2*time.Hour).Unix(),
		"FRESH", now.Add(time.Hour).Unix(),
	)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO price_history (cache_key, data, expires_at) VALUES (?, '[]', ?)",
		"OLD:30", now.Add(-3*time.Hour).Unix(),
	)
	require.NoError(t, err)

	require.NoError(t, job.Run())

	var count int
	require.NoError(t, db.QueryRow("SELECT (SELECT COUNT(*) FROM current_prices) + (SELECT COUNT(*) FROM price_history)").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCleanupJobRunEmptyTables(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), StaleRetention, zerolog.Nop())
	require.NoError(t, job.Run())
}

func TestCleanupJobRunMissingTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.Exec("DROP TABLE price_history")
	require.NoError(t, err)

	job := NewCleanupJob(NewRepository(db), StaleRetention, zerolog.Nop())
	assert.Error(t, job.Run())
}
