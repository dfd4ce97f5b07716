package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size, in frames, above which a database is reported
const walWarnFrames = 1000

// DatabaseMaintenanceJob checks database integrity and checkpoints the WAL
type DatabaseMaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates a maintenance job over databases
func NewDatabaseMaintenanceJob(databases []*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks every database. A failed integrity check on a ledger database
// fails the job; cache databases are only reported, their content can be refetched.
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			if db.Profile() == database.ProfileLedger {
				j.log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
				return fmt.Errorf("database %s failed integrity check: %w", db.Name(), err)
			}
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Cache database integrity check failed")
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to checkpoint WAL")
			continue
		}

		if frames > walWarnFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large")
		}

		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database maintenance completed")
	return nil
}
