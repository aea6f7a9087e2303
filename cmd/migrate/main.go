package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/lumenmfb/backend/internal/config"
	"github.com/lumenmfb/backend/internal/db"
	"github.com/lumenmfb/backend/internal/observability"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, "migrate")

	m, err := db.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open migrator", "err", err)
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if len(args) < 2 {
			logger.Error("step count required")
			os.Exit(2)
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			logger.Error("invalid step count", "value", args[1])
			os.Exit(2)
		}
		err = m.Steps(n)
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			logger.Info("current migration version", "version", version, "dirty", dirty)
		}
		err = verr
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", "command", args[0], "err", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <up|down|steps N|version>")
}
