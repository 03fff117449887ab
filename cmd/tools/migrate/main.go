// Command migrate applies or rolls back the embedded schema and seed migrations.
//
//	migrate [up|down N|version|force V]
package main

import (
	"errors"
	"flag"
	"os"
	"strconv"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/obs"
)

func main() {
	flag.Parse()
	logger := obs.NewLoggerTo(os.Stderr, "console", "info")

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := db.NewMigrator(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrator")
	}
	defer func() { _, _ = m.Close() }()

	cmd := flag.Arg(0)
	switch cmd {
	case "", "up":
		err = m.Up()
	case "down":
		steps := argInt(1, 1)
		err = m.Steps(-steps)
	case "force":
		err = m.Force(argInt(1, -1))
	case "version":
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal().Err(err).Msg("read version")
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
}

func argInt(i, fallback int) int {
	if v, err := strconv.Atoi(flag.Arg(i)); err == nil {
		return v
	}
	return fallback
}
