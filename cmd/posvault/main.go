// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package main is the posvault binary.
//
// PosVault snapshots a point-of-sale terminal's settings, signed-in user and
// working set into local (and optionally cloud) backups, and restores them.
//
// # Commands
//
//	posvault serve                 run the HTTP API and the in-process task host
//	posvault trigger               serve one scheduled trigger fire and exit
//	posvault backup [flags]        run a manual backup with the stored policy
//	posvault restore ID [flags]    restore a backup
//	posvault list [--history]      print local backups or the history ledger
//
// # Headless Trigger
//
// On devices whose OS scheduler runs background work as a separate process,
// register "posvault trigger" with the OS at the configured poll interval.
// When a "posvault serve" process already holds the data directory, trigger
// forwards the fire to its /api/v1/schedule/trigger endpoint instead.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables prefixed POSVAULT_, with __ separating sections
//     (POSVAULT_STORAGE__DATA_DIR, POSVAULT_VAULT__MASTER_KEY)
//   - Config file (--config, CONFIG_PATH, ./posvault.yaml, /etc/posvault/config.yaml)
//   - Built-in defaults
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/tomtom215/posvault/internal/config"
	"github.com/tomtom215/posvault/internal/logging"
)

// command is one subcommand.
type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"serve":   {"run the HTTP API and the in-process task host", runServe},
	"trigger": {"serve one scheduled trigger fire and exit", runTrigger},
	"backup":  {"run a manual backup", runBackup},
	"restore": {"restore a backup", runRestore},
	"list":    {"print local backups or the history ledger", runList},
}

// commandOrder fixes the usage listing.
var commandOrder = []string{"serve", "trigger", "backup", "restore", "list"}

// errUsage is returned after usage has been printed for bad input.
var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(os.Stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage(os.Stderr)
		return errUsage
	}
	return cmd.run(ctx, args[1:], stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "PosVault - point-of-sale backup and recovery")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  posvault <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&common.configPath, "config", "c", "", "path to the YAML config file")
	return fs
}

// parseFlags parses args, turning --help into a clean exit.
func parseFlags(fs *pflag.FlagSet, args []string) (help bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %w", errUsage, err)
	}
	return false, nil
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig(common commonFlags) (*config.Config, error) {
	if common.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, common.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	return cfg, nil
}

// printJSON writes v indented to w.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
