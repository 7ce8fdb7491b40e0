package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carrental/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backup service is disabled")
		return
	}

	expr := cronExpr(s.config.Schedule)
	scheduler := cron.New(cron.WithLocation(time.UTC))
	run := func() {
		if _, err := s.PerformBackup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled backup failed")
			return
		}
		s.CleanupOldBackups()
	}
	if _, err := scheduler.AddFunc(expr, run); err != nil {
		s.logger.Warn().Err(err).Str("schedule", expr).Msg("invalid backup schedule, using @daily")
		expr = "@daily"
		if _, err := scheduler.AddFunc(expr, run); err != nil {
			s.logger.Error().Err(err).Msg("backup scheduler failed")
			return
		}
	}

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	scheduler.Start()
	s.logger.Info().Str("schedule", expr).Msg("backup service started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
}

// cronExpr accepts a cron expression or a plain duration such as "6h".
func cronExpr(schedule string) string {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return "@daily"
	}
	if d, err := time.ParseDuration(schedule); err == nil && d > 0 {
		return "@every " + d.String()
	}
	return schedule
}

// PerformBackup writes a consistent snapshot with VACUUM INTO and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(s.config.StoragePath,
		fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405.000")))

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, backupPath); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", backupPath, err)
	}

	s.logger.Info().Str("path", backupPath).Msg("backup completed")
	return backupPath, nil
}

func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			_ = os.Remove(filepath.Join(s.config.StoragePath, file.Name()))
		}
	}
}
