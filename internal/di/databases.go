package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/database"
)

// InitializeDatabases opens the three databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. holdings.db - Monitored holdings, derivative positions, regulatory rules
	holdingsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/holdings.db",
		Profile: database.ProfileStandard,
		Name:    "holdings",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize holdings database: %w", err)
	}
	container.HoldingsDB = holdingsDB

	// 2. history.db - Durable mirror of the bounded time-series collections
	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileLedger, // Append-only audit data gets maximum safety
		Name:    "history",
	})
	if err != nil {
		holdingsDB.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// 3. alerting.db - Alert rules, recipients, notification log
	alertingDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/alerting.db",
		Profile: database.ProfileStandard,
		Name:    "alerting",
	})
	if err != nil {
		holdingsDB.Close()
		historyDB.Close()
		return nil, fmt.Errorf("failed to initialize alerting database: %w", err)
	}
	container.AlertingDB = alertingDB

	// Apply schemas
	for name, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.CloseDatabases()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Msg("Databases initialized")

	return container, nil
}
