package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
	"studyledger/internal/logging"
	"studyledger/internal/storage"
)

const closeTimeout = 30 * time.Second

// withStore loads the config, opens the configured backend and the store, runs
// fn, then writes pending state and releases everything in reverse order.
func (a *app) withStore(cmd *cobra.Command, fn func(s *ledger.Store, cfg config.Config) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadOrCreate(config.ResolveConfigPath(a.configPath))
	if err != nil {
		return err
	}
	log, closeLog, err := logging.Open(cfg.LogLevel, cfg.LogFile, a.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeLog()) }()

	backend, err := storage.Open(cfg.Backend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer func() { err = errors.Join(err, backend.Close()) }()
	log.Debug("backend opened", "kind", cfg.Backend, "path", cfg.StoragePath())

	store, err := ledger.Open(ctx, backend,
		ledger.WithLogger(log),
		ledger.WithClock(a.now),
		ledger.WithDefaultCurrency(cfg.DefaultCurrency),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := store.Close(closeCtx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("save ledger: %w", cerr))
		}
	}()

	return fn(store, cfg)
}
