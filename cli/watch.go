package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/daemon"
	"github.com/yoanbernabeu/ragsync/registry"
	"golang.org/x/sync/errgroup"
)

var (
	watchBackground   bool
	watchLogDir       string
	watchStatus       bool
	watchStop         bool
	watchContentTypes string
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder...]",
	Short: "Watch folders and keep them synchronized with the vector store",
	Long: `Watch one or more folders and keep their content indexed.

The watcher will:
- Restore previously watched folders from the vector store
- Perform an initial scan of each new folder
- Monitor filesystem events (create, modify, delete, rename)
- Apply debouncing (500ms by default) to batch rapid changes
- Replace a file's chunks atomically on change to avoid stale vectors

Folders given as arguments are added to the watched set. With no
arguments, only previously watched folders are restored.

Background mode:
  ragsync watch --background /docs      Run in background with default log directory
  ragsync watch --status                Check if background watcher is running
  ragsync watch --stop                  Stop the background watcher

Default log directories:
  Linux:   ~/.local/state/ragsync/logs/ragsync-watch.log (or $XDG_STATE_HOME)
  macOS:   ~/Library/Logs/ragsync/ragsync-watch.log
  Windows: %LOCALAPPDATA%\ragsync\logs\ragsync-watch.log`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchBackground, "background", false, "Run in background mode")
	watchCmd.Flags().StringVar(&watchLogDir, "log-dir", "", "Directory for log files (default: OS-specific)")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "Show background watcher status")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop the background watcher")
	watchCmd.Flags().StringVar(&watchContentTypes, "content-types", "", "Comma-separated content categories to index (text, pdf)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Validate mutually exclusive flags
	activeFlags := 0
	if watchBackground {
		activeFlags++
	}
	if watchStatus {
		activeFlags++
	}
	if watchStop {
		activeFlags++
	}
	if activeFlags > 1 {
		return fmt.Errorf("flags --background, --status, and --stop are mutually exclusive")
	}

	logDir := watchLogDir
	if logDir == "" {
		var err error
		logDir, err = daemon.GetDefaultLogDir()
		if err != nil {
			return fmt.Errorf("failed to get default log directory: %w", err)
		}
	}

	if watchStatus {
		return showWatchStatus(logDir)
	}

	if watchStop {
		return stopWatchDaemon(logDir)
	}

	if watchBackground {
		return startBackgroundWatch(logDir, args)
	}

	// Check if already running in background (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	isBackgroundChild := os.Getenv("RAGSYNC_BACKGROUND") == "1"
	if pid > 0 && !isBackgroundChild {
		return fmt.Errorf("watcher is already running in background (PID %d)\nUse 'ragsync watch --stop' to stop it", pid)
	}

	return runWatchForeground(logDir, args, isBackgroundChild)
}

func parseContentTypes(raw string) []string {
	var contentTypes []string
	for _, ct := range strings.Split(raw, ",") {
		ct = strings.TrimSpace(ct)
		if ct != "" {
			contentTypes = append(contentTypes, ct)
		}
	}
	return contentTypes
}

func runWatchForeground(logDir string, folders []string, isBackgroundChild bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := initializeGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer gw.Close()

	emb, err := initializeEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	reg := registry.New(gw, emb, cfg)
	defer reg.StopAll()

	// Restore previously watched folders before adding new ones so that
	// conflict checks see the full picture.
	restored, err := reg.Restore(ctx)
	if err != nil {
		log.Printf("Warning: restore incomplete: %v", err)
	}
	if restored > 0 {
		log.Printf("Restored %d watched folder(s)", restored)
	}

	contentTypes := parseContentTypes(watchContentTypes)

	g, gCtx := errgroup.WithContext(ctx)
	for _, folder := range folders {
		folder := folder
		g.Go(func() error {
			if err := reg.AddRoot(gCtx, folder, contentTypes); err != nil {
				return fmt.Errorf("failed to watch %s: %w", folder, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	roots := reg.ListRoots()
	if len(roots) == 0 {
		return fmt.Errorf("nothing to watch: no folders given and none to restore")
	}
	for _, root := range roots {
		log.Printf("Watching %s -> %s", root.Path, root.Collection)
	}

	if isBackgroundChild {
		if err := daemon.WritePIDFile(logDir); err != nil {
			return err
		}
		defer daemon.RemovePIDFile(logDir)
		if err := daemon.WriteReadyFile(logDir); err != nil {
			return err
		}
		defer daemon.RemoveReadyFile(logDir)
		log.Println("Watching for changes...")
	} else {
		fmt.Println("\nWatching for changes... (Press Ctrl+C to stop)")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopCh := daemon.StopChannel()

	select {
	case <-sigChan:
		if isBackgroundChild {
			log.Println("Shutting down...")
		} else {
			fmt.Println("\nShutting down...")
		}
	case <-stopCh:
		log.Println("Stop file detected, shutting down...")
	}

	return nil
}

func showWatchStatus(logDir string) error {
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if pid == 0 {
		fmt.Println("Status: not running")
		fmt.Printf("Log directory: %s\n", logDir)
		return nil
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Log file: %s\n", daemon.GetLogFile(logDir))

	return nil
}

func stopWatchDaemon(logDir string) error {
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if pid == 0 {
		fmt.Println("No background watcher is running")
		return nil
	}

	fmt.Printf("Stopping background watcher (PID %d)...\n", pid)
	if err := daemon.StopProcess(pid); err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}

	// Wait for the process to stop with a timeout
	const shutdownTimeout = 30 * time.Second
	const shutdownPollInterval = 500 * time.Millisecond
	deadline := time.Now().Add(shutdownTimeout)
	lastProgress := time.Now()

	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			break
		}

		if time.Since(lastProgress) >= 5*time.Second {
			fmt.Println("Waiting for graceful shutdown...")
			lastProgress = time.Now()
		}

		time.Sleep(shutdownPollInterval)
	}

	if daemon.IsProcessRunning(pid) {
		return fmt.Errorf("process did not stop within %v\nStill running? Try: kill -9 %d\nOr check logs at: %s",
			shutdownTimeout, pid, daemon.GetLogFile(logDir))
	}

	if err := daemon.RemovePIDFile(logDir); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	fmt.Println("Background watcher stopped")
	return nil
}

func startBackgroundWatch(logDir string, folders []string) error {
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("watcher is already running (PID %d)", pid)
	}

	// Build args for the background process (exclude --background flag)
	args := []string{"watch"}
	args = append(args, folders...)
	if watchLogDir != "" {
		args = append(args, "--log-dir", watchLogDir)
	}
	if watchContentTypes != "" {
		args = append(args, "--content-types", watchContentTypes)
	}

	childPID, exitCh, err := daemon.SpawnBackground(logDir, args)
	if err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	// Wait for the child to become ready or fail. Poll for the ready file
	// with a timeout, also checking for early child exit.
	const startupTimeout = 30 * time.Second
	const pollInterval = 250 * time.Millisecond
	deadline := time.Now().Add(startupTimeout)
	logFile := daemon.GetLogFile(logDir)

	for time.Now().Before(deadline) {
		if daemon.IsReady(logDir) {
			fmt.Printf("Background watcher started (PID %d)\n", childPID)
			fmt.Printf("Logs: %s\n", logFile)
			fmt.Printf("\nUse 'ragsync watch --status' to check status\n")
			fmt.Printf("Use 'ragsync watch --stop' to stop the watcher\n")
			return nil
		}

		// Check if child process exited early (detects failures immediately,
		// unlike kill(0) which reports zombies as alive)
		select {
		case <-exitCh:
			return fmt.Errorf("background process failed to start (check logs at %s)", logFile)
		default:
		}

		time.Sleep(pollInterval)
	}

	return fmt.Errorf("timeout waiting for process to become ready after %v (check logs at %s)", startupTimeout, logFile)
}
