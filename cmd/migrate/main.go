package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"worklog-platform/internal/config"
	"worklog-platform/pkg/database"
	"worklog-platform/pkg/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down, version or force")
	forceVersion := flag.Int("version", -1, "Schema version to record with -direction force")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected to database successfully")

	logger := logging.NewStructuredLogger("worklog-migrate", "1.0.0", cfg.LogLevel())
	defer logger.Sync()

	migrator, err := database.NewMigrator(db, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load migrations: %v\n", err)
		os.Exit(1)
	}

	switch *direction {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "force":
		if *forceVersion < 0 {
			fmt.Fprintln(os.Stderr, "-direction force requires -version")
			os.Exit(1)
		}
		err = migrator.Force(*forceVersion)
	case "version":
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction: %s\n", *direction)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	current, dirty, err := migrator.Version()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read schema version: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Schema version: %d (dirty: %t)\n", current, dirty)
}
