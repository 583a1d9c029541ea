package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sharebox/internal/annex"
	"sharebox/internal/config"
	"sharebox/internal/fs"
	"sharebox/internal/materialize"
	"sharebox/internal/metrics"
	"sharebox/internal/notify"
	"sharebox/internal/state"
	"sharebox/internal/syncer"
)

// ensureRepository initialises the backing repository and registers any
// configured remotes it does not know yet.
func ensureRepository(ctx context.Context, tool annex.Tool, cfg *config.Config) error {
	host, _ := os.Hostname()
	if err := tool.Init(ctx, "sharebox on "+host); err != nil {
		return fmt.Errorf("initialise %s: %w", cfg.GitDir, err)
	}

	existing, err := tool.Remotes(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}
	for _, r := range cfg.Remotes {
		if known[r.Name] {
			continue
		}
		logger.Info("Adding remote %s (%s)", r.Name, r.Location)
		if err := tool.AddRemote(ctx, r.Name, r.Location); err != nil {
			return err
		}
	}
	return nil
}

// stopScheduler stops new sync cycles and waits for the one in flight.
func stopScheduler(cancel context.CancelFunc, done <-chan struct{}) {
	cancel()
	select {
	case <-done:
	default:
		logger.Info("Waiting for the running sync to finish...")
		<-done
	}
}

func runMount(cfg *config.Config) error {
	logger.Info("Starting sharebox...")
	logger.Debug("Mount point: %s", cfg.MountPoint)
	logger.Debug("Backing directory: %s", cfg.GitDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tool := annex.NewGitAnnex(cfg.GitDir)
	if err := ensureRepository(ctx, tool, cfg); err != nil {
		return err
	}

	notifier, err := notify.New(cfg.NotifyCmd)
	if err != nil {
		return err
	}
	notifier.Start(ctx)
	defer notifier.Close()

	engine := materialize.New(
		state.NewResolver(cfg.GitDir, cfg.ReportKeySize),
		tool,
		materialize.WithNotifier(notifier),
	)
	sched := syncer.New(cfg, engine, syncer.WithNotifier(notifier))

	sfs, err := fs.NewShareFS(cfg, engine, sched)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("Metrics listener: %v", err)
			}
		}()
	}

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Mounting filesystem...")
	if err := sfs.Mount(cfg.MountPoint); err != nil {
		return err
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()
	logger.Info("Filesystem mounted and ready")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v", sig)
		stopScheduler(cancel, schedDone)
		if err := sfs.Unmount(cfg.MountPoint); err != nil {
			logger.Error("Unmount error: %v", err)
		}
	case <-sfs.Done():
		logger.Info("Filesystem was unmounted")
		stopScheduler(cancel, schedDone)
	}

	if err := engine.FinalizePending(context.Background()); err != nil {
		logger.Warn("Some files could not be committed before exit: %v", err)
	}
	logger.Info("Clean shutdown complete")
	return nil
}
