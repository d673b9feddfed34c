// Package reliability provides database backup, cloud replication and
// periodic maintenance for the SQLite databases.
package reliability

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/database"
)

// BackupService produces consistent point-in-time copies of the
// application databases. Copies are made with VACUUM INTO, which takes
// a transactional snapshot without blocking writers.
type BackupService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the given databases,
// keyed by logical name (holdings, history, alerting).
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the logical names of all managed databases,
// sorted for stable ordering.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase writes a consistent copy of the named database to
// destPath. The WAL is checkpointed first so the copy contains all
// committed writes.
func (s *BackupService) BackupDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().
			Err(err).
			Str("database", name).
			Msg("WAL checkpoint before backup failed")
	}

	if _, err := db.Conn().Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", name, err)
	}

	s.log.Debug().
		Str("database", name).
		Str("dest", destPath).
		Msg("Database backed up")

	return nil
}
