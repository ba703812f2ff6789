package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/eventbus"
	"github.com/vpittamp/i3pm-daemon/internal/launch"
	"github.com/vpittamp/i3pm-daemon/internal/log"
	"github.com/vpittamp/i3pm-daemon/internal/recovery"
	"github.com/vpittamp/i3pm-daemon/internal/rpc"
	"github.com/vpittamp/i3pm-daemon/internal/scratchpad"
	"github.com/vpittamp/i3pm-daemon/internal/settings"
	"github.com/vpittamp/i3pm-daemon/internal/telemetry"
	"github.com/vpittamp/i3pm-daemon/internal/watcher"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the project-scoped window manager daemon",
	Long: `Run the daemon that subscribes to the i3/Sway IPC event stream, tracks
and classifies every window by project, and exposes a JSON-RPC control
plane over a Unix socket for project switching, launch correlation, and
diagnostics.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	s, err := settings.Load(newViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	debug := os.Getenv("I3PM_DEBUG") != "" || debugFlag
	if debug {
		logPath := os.Getenv("I3PM_LOG")
		if logPath == "" {
			logPath = "i3pm-daemon.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()
		log.SetMinLevel(log.LevelDebug)
		log.Info(log.CatConfig, "i3pm-daemon starting", "version", version, "debug", true, "logPath", logPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := configstore.New(s.ConfigDir, s.DataDir)

	wmClient := wm.New(wm.Config{
		SocketPath:        s.WMSocketPath,
		RequestTimeout:    5 * time.Second,
		HealthInterval:    5 * time.Second,
		HealthTimeout:     2 * time.Second,
		ReconnectMinDelay: s.ReconnectMinDelay,
		ReconnectMaxDelay: s.ReconnectMaxDelay,
		MaxReconnectTries: s.MaxReconnectTries,
	})

	telemetryProvider, err := telemetry.New(ctx, telemetry.Config{OTLPEndpoint: s.OTLPEndpoint})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			log.Error(log.CatTelemetry, "error shutting down telemetry", "error", err)
		}
	}()

	bus := eventbus.New()
	scratch := scratchpad.New(wmClient, scratchpad.TerminalConfig{Command: "kitty"})

	d := dispatcher.New(dispatcher.Config{
		WM:        wmClient,
		Store:     store,
		Launches:  launch.New(s.LaunchTimeout),
		Scratch:   scratch,
		Telemetry: telemetryProvider,
		Bus:       bus,
	})

	result := recovery.ValidateAll(ctx, recovery.Deps{
		Store:       store,
		WMConnected: wmClient.Connected,
		Tree:        wmClient.GetTree,
	})
	for _, f := range result.Fixes {
		log.Info(log.CatRecovery, "startup recovery fix applied", "fix", f)
	}
	for _, w := range result.Warnings {
		log.Warn(log.CatRecovery, "startup recovery warning", "warning", w)
	}
	for _, e := range result.Errors {
		log.Error(log.CatRecovery, "startup recovery error", "error", e)
	}
	if err := d.ReloadConfig(); err != nil {
		return fmt.Errorf("loading initial config: %w", err)
	}

	cfgWatcher, err := watcher.New(watcher.DefaultConfig(store.ConfigDir, bus))
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := cfgWatcher.Start(); err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}
	defer func() { _ = cfgWatcher.Stop() }()

	handler := rpc.NewHandler(rpc.Deps{
		Dispatcher: d,
		Store:      store,
		Telemetry:  telemetryProvider,
		Scratch:    scratch,
		Settings:   s,
	})
	server := rpc.New(s.ControlSocketPath, handler)

	rpcErrCh := make(chan error, 1)
	log.SafeGo("rpc-server", func() { rpcErrCh <- server.Serve(ctx) })

	dispatchErrCh := make(chan error, 1)
	log.SafeGo("dispatcher-run", func() { dispatchErrCh <- d.Run(ctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("i3pm-daemon listening on %s\n", s.ControlSocketPath)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-rpcErrCh:
		if err != nil {
			log.Error(log.CatRPC, "rpc server exited with error", "error", err)
		}
	case err := <-dispatchErrCh:
		if err != nil {
			log.Error(log.CatDispatch, "dispatcher exited with error", "error", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	select {
	case <-dispatchErrCh:
	case <-shutdownCtx.Done():
		log.Warn(log.CatDispatch, "dispatcher did not stop within shutdown window")
	}

	fmt.Println("Daemon stopped")
	return nil
}
