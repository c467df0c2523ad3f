// Command migrate manages the chat database schema.
//
//	migrate up          apply pending migrations
//	migrate down N      roll back N migrations
//	migrate force V     mark version V as applied and clean
//	migrate version     print the current version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/config"
	"github.com/tekkistudio/tekki-chat/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cmd, arg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: migrate up | down N | force V | version")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	mg, err := database.NewMigrator(cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal("failed to open migrator", zap.Error(err))
	}
	defer func() { _ = mg.Close() }()

	if err := execute(mg, cmd, arg); err != nil {
		logger.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
}

// migrator is the subset of database.Migrator the command drives.
type migrator interface {
	Up() error
	Down(steps int) error
	Force(version int) error
	Version() (uint, bool, error)
}

// parseArgs validates the command line. Without arguments it runs up.
func parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	switch args[0] {
	case "up", "version":
		return args[0], 0, nil
	case "down", "force":
		if len(args) < 2 {
			return "", 0, fmt.Errorf("%s requires a number", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || (args[0] == "down" && n == 0) {
			return "", 0, fmt.Errorf("invalid %s argument %q", args[0], args[1])
		}
		return args[0], n, nil
	default:
		return "", 0, fmt.Errorf("unknown command %q", args[0])
	}
}

func execute(mg migrator, cmd string, arg int) error {
	switch cmd {
	case "up":
		return mg.Up()
	case "down":
		return mg.Down(arg)
	case "force":
		return mg.Force(arg)
	case "version":
		v, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
