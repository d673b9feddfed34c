package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/reliability"
	"github.com/aristath/vigil/internal/scheduler"
)

// cooldownRetention is how long stale cooldown stamps are kept before the
// hourly prune removes them.
const cooldownRetention = 24 * time.Hour

// RegisterJobs attaches all periodic jobs to the scheduler.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) error {
	// Coalesced recomputation of holdings touched by executions
	if err := sched.AddJob("@every 2s", scheduler.FuncJob{
		JobName: "recompute_dirty",
		Fn: func() error {
			container.HoldingsService.RecomputeDirty()
			return nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	// Periodic holding snapshots
	snapshotSchedule := fmt.Sprintf("@every %ds", cfg.SnapshotIntervalSeconds)
	if err := sched.AddJob(snapshotSchedule, scheduler.FuncJob{
		JobName: "record_snapshots",
		Fn: func() error {
			container.HoldingsService.RecordSnapshots()
			return nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register snapshot job: %w", err)
	}

	// Trend rollups over the full holding set
	trendSchedule := fmt.Sprintf("@every %dm", cfg.TrendIntervalMinutes)
	if err := sched.AddJob(trendSchedule, scheduler.FuncJob{
		JobName: "record_trend_point",
		Fn: func() error {
			container.HoldingsService.RecordTrendPoint()
			return nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register trend job: %w", err)
	}

	// Hourly prune of stale alert cooldown stamps
	if err := sched.AddJob("@hourly", scheduler.FuncJob{
		JobName: "prune_cooldowns",
		Fn: func() error {
			container.AlertingService.PruneCooldowns(cooldownRetention)
			return nil
		},
	}); err != nil {
		return fmt.Errorf("failed to register cooldown prune job: %w", err)
	}

	// Daily maintenance at 02:00 (integrity checks, WAL checkpoints, disk space)
	daily := reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log)
	if err := sched.AddJob("0 0 2 * * *", daily); err != nil {
		return fmt.Errorf("failed to register daily maintenance job: %w", err)
	}

	// Weekly VACUUM on Sunday 03:00
	weekly := reliability.NewWeeklyMaintenanceJob(container.Databases(), log)
	if err := sched.AddJob("0 0 3 * * 0", weekly); err != nil {
		return fmt.Errorf("failed to register weekly maintenance job: %w", err)
	}

	// Cloud backup at 02:30 daily, with rotation, when configured
	if container.CloudBackupService != nil {
		backup := container.CloudBackupService
		retentionDays := cfg.Backup.RetentionDays
		if err := sched.AddJob("0 30 2 * * *", scheduler.FuncJob{
			JobName: "cloud_backup",
			Fn: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
				defer cancel()

				if err := backup.CreateAndUploadBackup(ctx); err != nil {
					return err
				}
				return backup.RotateOldBackups(ctx, retentionDays)
			},
		}); err != nil {
			return fmt.Errorf("failed to register cloud backup job: %w", err)
		}
	}

	return nil
}
