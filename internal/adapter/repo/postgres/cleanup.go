package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CleanupService removes search history older than the retention window.
type CleanupService struct {
	DB            Execer
	RetentionDays int
	Now           func() time.Time
}

// NewCleanupService creates a cleanup service; non-positive retention
// defaults to 90 days.
func NewCleanupService(db Execer, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{DB: db, RetentionDays: retentionDays, Now: time.Now}
}

// CleanupOldData deletes history rows searched before the cutoff and
// returns how many were removed.
func (s *CleanupService) CleanupOldData(ctx context.Context) (int64, error) {
	cutoff := s.Now().UTC().AddDate(0, 0, -s.RetentionDays)
	tag, err := s.DB.Exec(ctx, `DELETE FROM search_history WHERE search_timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.history: %w", err)
	}
	deleted := tag.RowsAffected()
	slog.Info("history cleanup completed",
		slog.Int64("deleted_searches", deleted),
		slog.Time("cutoff", cutoff),
	)
	return deleted, nil
}

// RunPeriodic runs a cleanup immediately and then on every interval until
// ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
