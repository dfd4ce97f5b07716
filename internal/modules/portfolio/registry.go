package portfolio

import (
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AssetDraft is the input for adding an asset
type AssetDraft struct {
	Ticker      string
	AssetType   string
	Quantity    decimal.Decimal
	AvgBuyPrice decimal.Decimal
	Name        string
}

// AssetPatch carries the fields to replace on an existing asset.
// Nil fields are left untouched; id, ticker and portfolio membership never change.
type AssetPatch struct {
	Quantity    *decimal.Decimal
	AvgBuyPrice *decimal.Decimal
	Name        *string
	AssetType   *string
}

// Registry owns the CRUD lifecycle of portfolios and their assets.
// All writes are expressed as store mutations, so a rejected call never leaves
// partial state behind.
type Registry struct {
	store *Store
	newID func() string
	now   func() time.Time
	log   zerolog.Logger
}

// NewRegistry creates a registry over store
func NewRegistry(store *Store, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		newID: uuid.NewString,
		now:   time.Now,
		log:   log.With().Str("service", "asset_registry").Logger(),
	}
}

// Store returns the underlying state container
func (r *Registry) Store() *Store {
	return r.store
}

// CreatePortfolio creates an empty portfolio. The first portfolio becomes selected.
func (r *Registry) CreatePortfolio(name string) (domain.Portfolio, error) {
	cleanName, err := validatePortfolioName(name)
	if err != nil {
		return domain.Portfolio{}, err
	}

	p := domain.Portfolio{
		ID:        r.newID(),
		Name:      cleanName,
		Assets:    []domain.Asset{},
		CreatedAt: r.now().UTC(),
	}

	state, err := r.store.ApplyMutation(func(draft *State) ([]string, error) {
		first := len(draft.Portfolios) == 0
		draft.Portfolios = append(draft.Portfolios, p)
		if first {
			draft.SelectedPortfolioID = p.ID
		}
		return []string{p.ID}, nil
	})
	if err != nil {
		return domain.Portfolio{}, err
	}

	created, _ := state.Portfolio(p.ID)
	r.log.Info().Str("portfolio_id", p.ID).Str("name", cleanName).Msg("Portfolio created")
	return created, nil
}

// RenamePortfolio replaces a portfolio's name
func (r *Registry) RenamePortfolio(id, name string) (domain.Portfolio, error) {
	cleanName, err := validatePortfolioName(name)
	if err != nil {
		return domain.Portfolio{}, err
	}

	state, err := r.store.ApplyMutation(func(draft *State) ([]string, error) {
		i := draft.index(id)
		if i < 0 {
			return nil, domain.NewNotFoundError("portfolio", id)
		}
		draft.Portfolios[i].Name = cleanName
		return []string{id}, nil
	})
	if err != nil {
		return domain.Portfolio{}, err
	}

	renamed, _ := state.Portfolio(id)
	r.log.Info().Str("portfolio_id", id).Str("name", cleanName).Msg("Portfolio renamed")
	return renamed, nil
}

// DeletePortfolio removes a portfolio and its assets.
// If it was selected, selection moves to the first remaining portfolio.
func (r *Registry) DeletePortfolio(id string) error {
	_, err := r.store.ApplyMutation(func(draft *State) ([]string, error) {
		i := draft.index(id)
		if i < 0 {
			return nil, domain.NewNotFoundError("portfolio", id)
		}
		draft.Portfolios = append(draft.Portfolios[:i], draft.Portfolios[i+1:]...)
		return []string{id}, nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	return nil
}

// ListPortfolios returns every portfolio in creation order
func (r *Registry) ListPortfolios() []domain.Portfolio {
	return r.store.GetState().Portfolios
}

// GetPortfolio returns one portfolio
func (r *Registry) GetPortfolio(id string) (domain.Portfolio, error) {
	p, ok := r.store.GetState().Portfolio(id)
	if !ok {
		return domain.Portfolio{}, domain.NewNotFoundError("portfolio", id)
	}
	return p, nil
}

// ListAssets returns a portfolio's assets in insertion order
func (r *Registry) ListAssets(portfolioID string) ([]domain.Asset, error) {
	p, err := r.GetPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	return p.Assets, nil
}

// AddAsset validates draft and appends it to the portfolio with a fresh id
func (r *Registry) AddAsset(portfolioID string, draft AssetDraft) (domain.Asset, error) {
	ticker, err := NormalizeTicker(draft.Ticker)
	if err != nil {
		return domain.Asset{}, err
	}
	assetType, err := validateAssetType(draft.AssetType)
	if err != nil {
		return domain.Asset{}, err
	}
	if err := validatePositive("quantity", draft.Quantity); err != nil {
		return domain.Asset{}, err
	}
	if err := validatePositive("avgBuyPrice", draft.AvgBuyPrice); err != nil {
		return domain.Asset{}, err
	}
	name, err := validateDisplayName(draft.Name)
	if err != nil {
		return domain.Asset{}, err
	}

	asset := domain.Asset{
		ID:          r.newID(),
		Ticker:      ticker,
		Name:        DisplayName(ticker, name),
		AssetType:   assetType,
		Quantity:    draft.Quantity,
		AvgBuyPrice: draft.AvgBuyPrice,
	}

	_, err = r.store.ApplyMutation(func(st *State) ([]string, error) {
		i := st.index(portfolioID)
		if i < 0 {
			return nil, domain.NewNotFoundError("portfolio", portfolioID)
		}
		st.Portfolios[i].Assets = append(st.Portfolios[i].Assets, asset)
		return []string{portfolioID}, nil
	})
	if err != nil {
		return domain.Asset{}, err
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("asset_id", asset.ID).
		Str("ticker", asset.Ticker).
		Str("asset_type", asset.AssetType.String()).
		Str("quantity", asset.Quantity.String()).
		Str("avg_buy_price", asset.AvgBuyPrice.String()).
		Msg("Asset added")

	return asset, nil
}

// UpdateAsset applies patch to an asset and re-validates the result
func (r *Registry) UpdateAsset(portfolioID, assetID string, patch AssetPatch) (domain.Asset, error) {
	var updated domain.Asset

	_, err := r.store.ApplyMutation(func(st *State) ([]string, error) {
		pi := st.index(portfolioID)
		if pi < 0 {
			return nil, domain.NewNotFoundError("portfolio", portfolioID)
		}
		ai, ok := st.Portfolios[pi].AssetIndex(assetID)
		if !ok {
			return nil, domain.NewNotFoundError("asset", assetID)
		}

		asset := st.Portfolios[pi].Assets[ai]
		if patch.Quantity != nil {
			asset.Quantity = *patch.Quantity
		}
		if patch.AvgBuyPrice != nil {
			asset.AvgBuyPrice = *patch.AvgBuyPrice
		}
		if patch.AssetType != nil {
			t, err := validateAssetType(*patch.AssetType)
			if err != nil {
				return nil, err
			}
			asset.AssetType = t
		}
		if patch.Name != nil {
			name, err := validateDisplayName(*patch.Name)
			if err != nil {
				return nil, err
			}
			asset.Name = DisplayName(asset.Ticker, name)
		}
		if err := validateAsset(asset); err != nil {
			return nil, err
		}

		st.Portfolios[pi].Assets[ai] = asset
		updated = asset
		return []string{portfolioID}, nil
	})
	if err != nil {
		return domain.Asset{}, err
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("asset_id", assetID).
		Msg("Asset updated")

	return updated, nil
}

// DeleteAsset removes an asset. Deleting an unknown asset is a NotFoundError.
func (r *Registry) DeleteAsset(portfolioID, assetID string) error {
	_, err := r.store.ApplyMutation(func(st *State) ([]string, error) {
		pi := st.index(portfolioID)
		if pi < 0 {
			return nil, domain.NewNotFoundError("portfolio", portfolioID)
		}
		ai, ok := st.Portfolios[pi].AssetIndex(assetID)
		if !ok {
			return nil, domain.NewNotFoundError("asset", assetID)
		}
		assets := st.Portfolios[pi].Assets
		st.Portfolios[pi].Assets = append(assets[:ai], assets[ai+1:]...)
		return []string{portfolioID}, nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("asset_id", assetID).
		Msg("Asset deleted")

	return nil
}

// SelectPortfolio marks a portfolio as selected
func (r *Registry) SelectPortfolio(id string) error {
	return r.store.SelectPortfolio(id)
}
