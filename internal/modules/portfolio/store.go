// Package portfolio owns the portfolio state container and the registry that mutates it.
package portfolio

import (
	"fmt"
	"sync"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// State is an immutable snapshot of every portfolio and the current selection.
// SelectedPortfolioID is empty or references an existing portfolio.
type State struct {
	Portfolios          []domain.Portfolio `json:"portfolios"`
	SelectedPortfolioID string             `json:"selectedPortfolioId"`
	Version             uint64             `json:"version"`
}

// Portfolio returns the portfolio with the given id
func (s State) Portfolio(id string) (domain.Portfolio, bool) {
	i := s.index(id)
	if i < 0 {
		return domain.Portfolio{}, false
	}
	return s.Portfolios[i], true
}

func (s State) index(id string) int {
	for i, p := range s.Portfolios {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	out := State{
		Portfolios:          make([]domain.Portfolio, len(s.Portfolios)),
		SelectedPortfolioID: s.SelectedPortfolioID,
		Version:             s.Version,
	}
	for i, p := range s.Portfolios {
		out.Portfolios[i] = p.Clone()
	}
	return out
}

// normalizeSelection keeps the selection pointing at an existing portfolio,
// falling back to the first remaining one (or none).
func (s *State) normalizeSelection() {
	if s.SelectedPortfolioID != "" && s.index(s.SelectedPortfolioID) >= 0 {
		return
	}
	if len(s.Portfolios) > 0 {
		s.SelectedPortfolioID = s.Portfolios[0].ID
		return
	}
	s.SelectedPortfolioID = ""
}

// Change describes one applied mutation
type Change struct {
	Version      uint64
	PortfolioIDs []string // portfolios whose content changed
}

// Listener is notified after each applied mutation, in version order
type Listener func(Change)

// Mutation edits a draft copy of the state. It returns the ids of the portfolios it
// changed. Returning an error discards the draft, leaving the store untouched.
type Mutation func(draft *State) (touched []string, err error)

// Store is the single shared mutable state of the service.
// Every write goes through ApplyMutation, which serializes writers and bumps Version.
type Store struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	state     State
	listeners []Listener
	log       zerolog.Logger
}

// NewStore creates an empty store
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		log: log.With().Str("component", "portfolio_store").Logger(),
	}
}

// GetState returns a deep copy of the current state
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Version returns the current mutation counter
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Version
}

// Tickers returns the distinct tickers held across all portfolios
func (s *Store) Tickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, p := range s.state.Portfolios {
		for _, t := range p.Tickers() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Subscribe registers a listener for applied mutations
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// ApplyMutation runs fn against a draft copy and, if it succeeds, atomically swaps the
// draft in as the new state with Version+1. Touched portfolios get the new version as
// their Revision. Listeners run after the swap, outside the state lock, in version order.
func (s *Store) ApplyMutation(fn Mutation) (State, error) {
	// notifyMu is taken before mu so listeners observe changes in version order
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	draft := s.state.clone()
	touched, err := fn(&draft)
	if err != nil {
		s.mu.Unlock()
		return State{}, err
	}

	draft.Version = s.state.Version + 1
	for _, id := range touched {
		if i := draft.index(id); i >= 0 {
			draft.Portfolios[i].Revision = draft.Version
		}
	}
	draft.normalizeSelection()
	s.state = draft

	result := draft.clone()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	change := Change{Version: result.Version, PortfolioIDs: touched}
	for _, l := range listeners {
		l(change)
	}

	s.log.Debug().
		Uint64("version", result.Version).
		Strs("portfolios", touched).
		Msg("Mutation applied")

	return result, nil
}

// SelectPortfolio marks id as the selected portfolio
func (s *Store) SelectPortfolio(id string) error {
	_, err := s.ApplyMutation(func(draft *State) ([]string, error) {
		if draft.index(id) < 0 {
			return nil, domain.NewNotFoundError("portfolio", id)
		}
		draft.SelectedPortfolioID = id
		return nil, nil
	})
	return err
}

// Restore replaces the whole state, used once at startup from a persisted snapshot.
// It refuses to run on a store that already accepted mutations.
func (s *Store) Restore(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Version != 0 {
		return fmt.Errorf("cannot restore into store at version %d", s.state.Version)
	}

	restored := state.clone()
	restored.normalizeSelection()
	s.state = restored

	s.log.Info().
		Uint64("version", restored.Version).
		Int("portfolios", len(restored.Portfolios)).
		Msg("Store restored from snapshot")

	return nil
}
