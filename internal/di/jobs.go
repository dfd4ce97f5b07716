package di

import (
	"fmt"

	"github.com/aristath/stockfolio/internal/clientdata"
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/modules/quotes"
	"github.com/aristath/stockfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers the background jobs
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	refresh := quotes.NewRefreshJob(
		container.Store,
		container.Resolver,
		cfg.QuoteTimeout*3,
		onQuotesRefreshed(container),
		log,
	)
	cleanup := clientdata.NewCleanupJob(container.ClientDataRepo, clientdata.StaleRetention, log)
	maintenance := scheduler.NewDatabaseMaintenanceJob([]*database.DB{container.StateDB, container.CacheDB}, log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.QuoteRefreshSchedule, refresh},
		{cfg.CacheCleanupSchedule, cleanup},
		{cfg.MaintenanceSchedule, maintenance},
	}

	for _, j := range jobs {
		if err := container.Scheduler.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register %s: %w", j.job.Name(), err)
		}
		container.Jobs = append(container.Jobs, j.job)
	}

	log.Info().Int("jobs", len(container.Jobs)).Msg("Jobs registered")
	return nil
}
