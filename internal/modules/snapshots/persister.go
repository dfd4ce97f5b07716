package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

const defaultKeep = 20

// Persister writes the store to the repository after mutations.
// Bursts of mutations coalesce into one write of the newest state.
type Persister struct {
	store   *portfolio.Store
	repo    *Repository
	keep    int
	pending chan struct{}
	done    chan struct{}
	saved   uint64
	log     zerolog.Logger
}

// NewPersister creates a persister. Call Listen to subscribe it, then Run.
func NewPersister(store *portfolio.Store, repo *Repository, keep int, log zerolog.Logger) *Persister {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Persister{
		store:   store,
		repo:    repo,
		keep:    keep,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
		saved:   store.Version(),
		log:     log.With().Str("service", "snapshot_persister").Logger(),
	}
}

// Listen is the store listener. It never blocks.
func (p *Persister) Listen(portfolio.Change) {
	select {
	case p.pending <- struct{}{}:
	default:
		// a write is already queued and will pick up this change
	}
}

// Run writes snapshots until ctx is done, then flushes once more
func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-p.pending:
			if err := p.Flush(ctx); err != nil {
				p.log.Error().Err(err).Msg("Failed to persist snapshot")
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.Flush(flushCtx); err != nil {
				p.log.Error().Err(err).Msg("Failed to persist final snapshot")
			}
			cancel()
			return
		}
	}
}

// Done is closed when Run has returned
func (p *Persister) Done() <-chan struct{} {
	return p.done
}

// Flush saves the current state if it is newer than the last saved version
func (p *Persister) Flush(ctx context.Context) error {
	state := p.store.GetState()
	if state.Version <= p.saved {
		return nil
	}

	if err := p.repo.Save(ctx, state); err != nil {
		return err
	}
	p.saved = state.Version

	if _, err := p.repo.Prune(ctx, p.keep); err != nil {
		p.log.Warn().Err(err).Msg("Failed to prune snapshots")
	}

	p.log.Debug().Uint64("version", state.Version).Msg("Snapshot persisted")
	return nil
}

// RestoreLatest loads the newest snapshot into an empty store.
// Returns false when there was nothing to restore.
func RestoreLatest(ctx context.Context, repo *Repository, store *portfolio.Store) (bool, error) {
	state, err := repo.Latest(ctx)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	if err := store.Restore(*state); err != nil {
		return false, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return true, nil
}
