// Package clientdata caches market data responses in sqlite.
// Rows hold a JSON blob plus an expiry timestamp, so callers can read fresh
// entries first and fall back to expired ones when the upstream is down.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// TableCurrentPrices holds the latest quote per ticker
	TableCurrentPrices = "current_prices"
	// TablePriceHistory holds daily closes keyed by ticker and window
	TablePriceHistory = "price_history"
)

// AllTables lists every cache table for cleanup
var AllTables = []string{
	TableCurrentPrices,
	TablePriceHistory,
}

var keyColumns = map[string]string{
	TableCurrentPrices: "ticker",
	TablePriceHistory:  "cache_key",
}

// Entry is a cached row
type Entry struct {
	Data      json.RawMessage
	ExpiresAt time.Time
}

// Repository provides cache operations over the client data database
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// keyColumn validates the table name and returns its key column.
// Table names are never taken from user input, but they are interpolated into SQL.
func keyColumn(table string) (string, error) {
	col, ok := keyColumns[table]
	if !ok {
		return "", fmt.Errorf("invalid table name: %s", table)
	}
	return col, nil
}

// Store upserts data with expires_at = now + ttl
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	col, err := keyColumn(table)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)",
		table, col,
	)

	if _, err := r.db.Exec(query, key, string(payload), r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns data only while it has not expired.
// Returns nil, nil for a missing or expired key.
func (r *Repository) GetIfFresh(table, key string) (json.RawMessage, error) {
	col, err := keyColumn(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ? AND expires_at > ?", table, col)

	var data string
	err = r.db.QueryRow(query, key, r.now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Get returns the entry regardless of expiry, nil if the key doesn't exist
func (r *Repository) Get(table, key string) (*Entry, error) {
	col, err := keyColumn(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE %s = ?", table, col)

	var (
		data      string
		expiresAt int64
	)
	err = r.db.QueryRow(query, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return &Entry{Data: json.RawMessage(data), ExpiresAt: time.Unix(expiresAt, 0)}, nil
}

// Delete removes a single entry
func (r *Repository) Delete(table, key string) error {
	col, err := keyColumn(table)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col)
	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes rows older than retention past their expiry.
// Expired rows are kept for retention as a stale fallback.
func (r *Repository) DeleteExpired(table string, retention time.Duration) (int64, error) {
	if _, err := keyColumn(table); err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-retention).Unix()

	result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired runs DeleteExpired over every table.
// Returns rows deleted per table.
func (r *Repository) DeleteAllExpired(retention time.Duration) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table, retention)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
