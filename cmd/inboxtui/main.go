package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/inbox/internal/lock"
	"github.com/matheus3301/inbox/internal/logging"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/tui"
	"github.com/matheus3301/inbox/internal/tui/client"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := profile.SocketPath(profileName)

	// Probe daemon health; auto-start if needed.
	if !client.Probe(socketPath) {
		// A held lock means a daemon is already booting; wait for it instead.
		if pid, held := lock.Holder(profile.Dir(profileName)); held {
			fmt.Fprintf(os.Stderr, "waiting for daemon (PID %d) for profile %q...\n", pid, profileName)
		} else {
			fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profileName)
			if err := startDaemon(profileName); err != nil {
				fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
				os.Exit(1)
			}
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready, see %s\n", profile.LogPath(profileName))
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// The terminal belongs to tview, so the TUI logs to file only.
	logger, err := logging.NewFileOnly(filepath.Join(profile.LogDir(profileName), "inboxtui.log"), profileName)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	app := tui.NewApp(c, profileName, logger)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func startDaemon(profileName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	inboxd := filepath.Join(filepath.Dir(executable), "inboxd")

	if _, err := os.Stat(inboxd); err != nil {
		inboxd = "inboxd"
	}

	// Daemon output goes to its log file; the terminal is about to belong to the TUI.
	cmd := exec.Command(inboxd, "--profile", profileName)
	return cmd.Start()
}

// waitForDaemon polls the daemon with a real gRPC health check (not just socket connect).
func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.Probe(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
