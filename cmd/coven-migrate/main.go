// ABOUTME: Entry point for coven-migrate, the workspace migration orchestrator
// ABOUTME: Dispatches the upgrade, init, indexes, token and serve-control commands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                    _                 _
  ___ _____   _____ _ __        _ __ ___  (_) __ _ _ __ __ _| |_ ___
 / __/ _ \ \ / / _ \ '_ \ _____| '_ ' _ \ | |/ _' | '__/ _' | __/ _ \
| (_| (_) \ V /  __/ | | |_____| | | | | || | (_| | | | (_| | ||  __/
 \___\___/ \_/ \___|_| |_|     |_| |_| |_||_|\__, |_|  \__,_|\__\___|
                                             |___/
`

// getConfigPath returns the path to the migrate config file.
// Priority: COVEN_MIGRATE_CONFIG env var > XDG_CONFIG_HOME/coven/migrate.yaml > ~/.config/coven/migrate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_MIGRATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "migrate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "migrate.yaml")
}

func usage() {
	fmt.Println("Usage: coven-migrate <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  upgrade --model FILE     Migrate a workspace to the model in FILE")
	fmt.Println("  init --model FILE        Install the model into a fresh workspace")
	fmt.Println("  update --model FILE      Run upgrade steps against a live workspace")
	fmt.Println("  indexes --model FILE     Check and create domain indexes")
	fmt.Println("  token                    Print a workspace upgrade token")
	fmt.Println("  serve-control            Serve the workspace control channel")
	fmt.Println("  version                  Print the version")
	fmt.Println()
	fmt.Println("Every command accepts --config PATH (default: $COVEN_MIGRATE_CONFIG or ~/.config/coven/migrate.yaml)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "upgrade":
		err = runUpgrade(ctx, args)
	case "init":
		err = runInit(ctx, args)
	case "update":
		err = runUpdate(ctx, args)
	case "indexes":
		err = runIndexes(ctx, args)
	case "token":
		err = runToken(args)
	case "serve-control":
		err = runServeControl(ctx, args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func printBanner() {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(os.Stderr, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "    version: %s\n\n", version)
}
