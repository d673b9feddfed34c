package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/modules/alerting"
	"github.com/aristath/vigil/internal/modules/history"
	"github.com/aristath/vigil/internal/modules/holdings"
)

// InitializeRepositories creates the repositories and seeds reference data.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.HoldingsRepo = holdings.NewRepository(container.HoldingsDB.Conn(), log)
	container.AlertingRepo = alerting.NewRepository(container.AlertingDB.Conn(), log)
	container.MirrorRepo = history.NewSQLiteMirrorRepository(container.HistoryDB.Conn(), log)

	// Seed the regulatory rule catalogue and the default alert rules.
	// Both are idempotent.
	if err := container.HoldingsRepo.SeedRules(holdings.DefaultRules()); err != nil {
		return fmt.Errorf("failed to seed regulatory rules: %w", err)
	}
	if err := alerting.SeedDefaultRules(container.AlertingRepo); err != nil {
		return fmt.Errorf("failed to seed default alert rules: %w", err)
	}

	log.Info().Msg("Repositories initialized")
	return nil
}
