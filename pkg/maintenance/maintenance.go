package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatterd/pkg/config"
	"chatterd/pkg/logger"
	"chatterd/pkg/store"
	"chatterd/pkg/telemetry"
)

// Start runs the periodic store stats sweep if enabled, returning a
// cancel func. The sweep only reads: it refreshes the store gauges and
// logs counts. Messages are never deleted here; history is append-only
// from the coordinator's point of view.
func Start(ctx context.Context, cfg config.MaintenanceConfig, st *store.Store) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cfg.Cron)
	}
	logger.Info("maintenance_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, st)
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and sweeps. gronx gives
// the next future tick, so drift stays bounded to the cron resolution.
func runScheduler(ctx context.Context, cronExpr string, st *store.Store) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("maintenance_next_tick_failed", "cron", cronExpr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("maintenance_stopping")
			return
		case <-time.After(next.Sub(now)):
		}
		sweep(st)
	}
}

func sweep(st *store.Store) {
	users, messages, err := st.Counts()
	if err != nil {
		logger.Error("maintenance_sweep_failed", "error", err)
		return
	}
	telemetry.SetStoreCounts(users, messages)
	logger.Info("maintenance_sweep", "users", users, "messages", messages)
}
