// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/modules/alerting"
	"github.com/aristath/vigil/internal/modules/compliance"
	"github.com/aristath/vigil/internal/modules/history"
	"github.com/aristath/vigil/internal/modules/holdings"
	"github.com/aristath/vigil/internal/reliability"
)

// Container holds every wired dependency. Fields are populated in stages
// by Wire; a nil field after wiring means the component is disabled by
// configuration (cloud backup without credentials, for example).
type Container struct {
	// Databases
	HoldingsDB *database.DB
	HistoryDB  *database.DB
	AlertingDB *database.DB

	// Event bus
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	HoldingsRepo *holdings.Repository
	AlertingRepo *alerting.Repository
	MirrorRepo   *history.SQLiteMirrorRepository

	// Time-series store and its durable mirror
	HistoryStore *history.Store
	MirrorWorker *history.MirrorWorker

	// Services
	Calculator      *compliance.Calculator
	HoldingsService *holdings.Service
	AlertingService *alerting.Service

	// Market data and delivery
	Provider domain.MarketDataProvider
	Sender   domain.ChannelSender

	// Backup
	BackupService      *reliability.BackupService
	CloudBackupService *reliability.CloudBackupService
}

// Databases returns the managed databases keyed by logical name.
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"holdings": c.HoldingsDB,
		"history":  c.HistoryDB,
		"alerting": c.AlertingDB,
	}
}

// CloseDatabases closes every open database, ignoring close errors.
// Used for cleanup when a later wiring stage fails.
func (c *Container) CloseDatabases() {
	for _, db := range []*database.DB{c.HoldingsDB, c.HistoryDB, c.AlertingDB} {
		if db != nil {
			db.Close()
		}
	}
}
