// Package snapshots persists the portfolio store so state survives restarts.
package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

const formatV1 = 1

// Wire records. Decimals travel as strings so no precision is lost.
type snapshotRecord struct {
	Version             uint64            `msgpack:"v"`
	SelectedPortfolioID string            `msgpack:"sel"`
	Portfolios          []portfolioRecord `msgpack:"p"`
}

type portfolioRecord struct {
	ID        string        `msgpack:"id"`
	Name      string        `msgpack:"n"`
	CreatedAt int64         `msgpack:"c"`
	Revision  uint64        `msgpack:"r"`
	Assets    []assetRecord `msgpack:"a"`
}

type assetRecord struct {
	ID          string `msgpack:"id"`
	Ticker      string `msgpack:"t"`
	Name        string `msgpack:"n"`
	AssetType   string `msgpack:"k"`
	Quantity    string `msgpack:"q"`
	AvgBuyPrice string `msgpack:"p"`
}

// Repository stores encoded snapshots in the state database
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a snapshot repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Save writes state under its version. Saving a version twice is a no-op.
func (r *Repository) Save(ctx context.Context, state portfolio.State) error {
	payload, err := Encode(state)
	if err != nil {
		return err
	}

	assets := 0
	for _, p := range state.Portfolios {
		assets += len(p.Assets)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO store_snapshots (version, format, payload, portfolio_count, asset_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, int64(state.Version), formatV1, payload, len(state.Portfolios), assets, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %d: %w", state.Version, err)
	}

	return nil
}

// Latest returns the highest-version snapshot, or nil if none exists
func (r *Repository) Latest(ctx context.Context) (*portfolio.State, error) {
	var (
		format  int
		payload []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT format, payload FROM store_snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&format, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	if format != formatV1 {
		return nil, fmt.Errorf("unsupported snapshot format %d", format)
	}

	state, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Prune keeps the newest keep snapshots and deletes the rest
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM store_snapshots
		WHERE version NOT IN (SELECT version FROM store_snapshots ORDER BY version DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Encode serializes state with msgpack
func Encode(state portfolio.State) ([]byte, error) {
	rec := snapshotRecord{
		Version:             state.Version,
		SelectedPortfolioID: state.SelectedPortfolioID,
		Portfolios:          make([]portfolioRecord, len(state.Portfolios)),
	}

	for i, p := range state.Portfolios {
		pr := portfolioRecord{
			ID:        p.ID,
			Name:      p.Name,
			CreatedAt: p.CreatedAt.UnixNano(),
			Revision:  p.Revision,
			Assets:    make([]assetRecord, len(p.Assets)),
		}
		for j, a := range p.Assets {
			pr.Assets[j] = assetRecord{
				ID:          a.ID,
				Ticker:      a.Ticker,
				Name:        a.Name,
				AssetType:   string(a.AssetType),
				Quantity:    a.Quantity.String(),
				AvgBuyPrice: a.AvgBuyPrice.String(),
			}
		}
		rec.Portfolios[i] = pr
	}

	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return payload, nil
}

// Decode parses a msgpack snapshot, rejecting assets that no longer validate
func Decode(payload []byte) (portfolio.State, error) {
	var rec snapshotRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return portfolio.State{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	state := portfolio.State{
		Version:             rec.Version,
		SelectedPortfolioID: rec.SelectedPortfolioID,
		Portfolios:          make([]domain.Portfolio, len(rec.Portfolios)),
	}

	for i, pr := range rec.Portfolios {
		p := domain.Portfolio{
			ID:        pr.ID,
			Name:      pr.Name,
			CreatedAt: time.Unix(0, pr.CreatedAt).UTC(),
			Revision:  pr.Revision,
			Assets:    make([]domain.Asset, len(pr.Assets)),
		}
		for j, ar := range pr.Assets {
			a, err := decodeAsset(ar)
			if err != nil {
				return portfolio.State{}, fmt.Errorf("portfolio %s: %w", pr.ID, err)
			}
			p.Assets[j] = a
		}
		state.Portfolios[i] = p
	}

	return state, nil
}

func decodeAsset(ar assetRecord) (domain.Asset, error) {
	assetType, err := domain.ParseAssetType(ar.AssetType)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("asset %s: %w", ar.ID, err)
	}
	qty, err := decimal.NewFromString(ar.Quantity)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("asset %s quantity: %w", ar.ID, err)
	}
	price, err := decimal.NewFromString(ar.AvgBuyPrice)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("asset %s avg buy price: %w", ar.ID, err)
	}

	return domain.Asset{
		ID:          ar.ID,
		Ticker:      ar.Ticker,
		Name:        ar.Name,
		AssetType:   assetType,
		Quantity:    qty,
		AvgBuyPrice: price,
	}, nil
}
