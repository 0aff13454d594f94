package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/truetest/internal/config"
	"github.com/joeycumines/truetest/internal/storage"
)

// newCleaner applies the [sessions] retention policy to dir.
func newCleaner(cfg *config.Config, dir string, logger *slog.Logger) *storage.Cleaner {
	sc := config.NewConfig().Sessions
	if cfg != nil {
		sc = cfg.Sessions
	}
	return &storage.Cleaner{
		Dir:        dir,
		MaxAgeDays: sc.MaxAgeDays,
		MaxCount:   sc.MaxCount,
		MaxSizeMB:  sc.MaxSizeMB,
		Logger:     logger,
	}
}

// maybeStartCleanupScheduler runs background cleanup for long-lived commands
// when autoCleanupEnabled is set. Only the fs backend keeps per-session
// documents to clean. The returned stop function must be called.
func maybeStartCleanupScheduler(cfg *config.Config, backend, dir, excludeID string, logger *slog.Logger) (stop func()) {
	if cfg == nil || !cfg.Sessions.AutoCleanupEnabled || backend != storage.DefaultBackend {
		return func() {}
	}

	scheduler := &storage.CleanupScheduler{
		Cleaner:   newCleaner(cfg, dir, logger),
		ExcludeID: excludeID,
		Interval:  time.Duration(cfg.Sessions.CleanupIntervalHours) * time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
