// Package di provides dependency injection type definitions.
//
// Container holds every long-lived service. It is built once by Wire and
// handed to the HTTP server.
package di

import (
	"github.com/aristath/stockfolio/internal/clientdata"
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/aggregation"
	"github.com/aristath/stockfolio/internal/modules/history"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/quotes"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/scheduler"
	"github.com/aristath/stockfolio/internal/stream"
)

// Container holds all dependencies for the application
type Container struct {
	Config *config.Config

	// Databases
	StateDB *database.DB // store snapshots, ledger profile
	CacheDB *database.DB // quote and history cache, cache profile

	// Clients
	QuoteGateway   domain.QuoteGateway
	HistoryGateway domain.HistoryGateway // nil when the provider has no history

	// Repositories
	ClientDataRepo *clientdata.Repository
	SnapshotRepo   *snapshots.Repository

	// Services
	Store     *portfolio.Store
	Registry  *portfolio.Registry
	Resolver  *quotes.Resolver
	Stats     *aggregation.Service
	History   *history.Service
	Hub       *stream.Hub
	Persister *snapshots.Persister // nil when snapshots are disabled

	// Background work
	Scheduler *scheduler.Scheduler
	Jobs      []scheduler.Job
}

// Close closes every database
func (c *Container) Close() {
	if c.StateDB != nil {
		c.StateDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
