package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ahriroot/watchmen/internal/cache"
	"github.com/ahriroot/watchmen/internal/config"
	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/engine"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/monitor"
	"github.com/ahriroot/watchmen/internal/registry"
	"github.com/ahriroot/watchmen/internal/restart"
	"github.com/ahriroot/watchmen/internal/transport"
)

var runAsDaemon bool

var generatePath string

func init() {
	rootCmd.Flags().BoolVar(&runAsDaemon, "daemon", false, "run the supervisor daemon in the foreground")
	rootCmd.Flags().StringVar(&generatePath, "generate", "", "emit a starter config file and task file into this directory")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if generatePath != "" {
			return generateCmd.RunE(cmd, []string{generatePath})
		}
		if !runAsDaemon {
			return cmd.Help()
		}
		return RunDaemon(configPath)
	}
}

// RunDaemon loads cfgPath, boots the supervision engine from its cache,
// starts every configured transport, and blocks until SIGINT/SIGTERM.
// A single-instance file lock is acquired before bind; a context
// cancelled by signal.NotifyContext drives shutdown of every subsystem
// rather than a bespoke per-component stop call.
func RunDaemon(cfgPath string) error {
	cfg, err := config.LoadDaemon(cfgPath)
	if err != nil {
		return err
	}

	lockPath := cfg.Watchmen.Pid + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring daemon lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another watchmen daemon instance is already running (lock %s held)", lockPath)
	}
	defer lock.Unlock()

	if err := os.WriteFile(cfg.Watchmen.Pid, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer os.Remove(cfg.Watchmen.Pid)

	logDir := filepath.Dir(cfg.Watchmen.Stdout)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", logDir, err)
	}
	logFile, err := os.OpenFile(cfg.Watchmen.Stdout, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening daemon log file %s: %w", cfg.Watchmen.Stdout, err)
	}
	defer logFile.Close()
	log := logging.New(logFile, logging.ParseLevel(cfg.Watchmen.LogLevel))

	reg := registry.New()
	store := cache.New(cfg.Watchmen.Cache)
	restarts := restart.New()
	eng := engine.New(reg, store, restarts, log)

	if err := eng.Boot(); err != nil {
		log.Warnf("boot: failed to load cache: %v", err)
	}

	disp := dispatch.New(eng, log)

	adapters, err := buildAdapters(cfg, disp, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := monitor.New(eng, reg, restarts, log, cfg.Watchmen.Stdout)
	go loop.Run(ctx)

	errCh := make(chan error, len(adapters))
	for _, a := range adapters {
		a := a
		go func() {
			if err := a.Serve(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	log.Infof("watchmen daemon started, pid %d", os.Getpid())
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Errorf("transport adapter failed: %v", err)
		stop()
	}
	log.Infof("shutting down: closing transport adapters, leaving supervised processes running")
	for _, a := range adapters {
		a.Close()
	}
	return nil
}

func buildAdapters(cfg *config.Daemon, disp *dispatch.Dispatcher, log *logging.Logger) ([]transport.Adapter, error) {
	var out []transport.Adapter
	if cfg.EnabledTransport("sock") {
		a, err := transport.NewUnix(cfg.Sock.Path, disp, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if cfg.EnabledTransport("socket") {
		a, err := transport.NewTCP(cfg.Socket.Host, cfg.Socket.Port, disp, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if cfg.EnabledTransport("http") {
		a, err := transport.NewHTTP(cfg.HTTP.Host, cfg.HTTP.Port, disp, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if cfg.EnabledTransport("redis") {
		a, err := transport.NewRedis(transport.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			RequestChan:  cfg.Redis.RequestChan,
			ResponseChan: cfg.Redis.ResponseChan,
		}, disp, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no transports enabled in watchmen.engines")
	}
	return out, nil
}
