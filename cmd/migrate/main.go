package main

import (
	"flag"
	"log"

	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back migrations instead of applying them")
	steps := flag.Int("steps", 1, "number of migrations to roll back with -down")
	status := flag.Bool("status", false, "print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	db, err := postgres.NewDB(cfg, l)
	if err != nil {
		l.Fatalw("connect to postgres", "host", cfg.Postgres.Host, "error", err)
	}
	defer db.Close()

	switch {
	case *status:
		// reported below
	case *down:
		if *steps < 1 {
			l.Fatalw("-steps must be at least 1", "steps", *steps)
		}
		l.Infow("rolling back migrations", "steps", *steps)
		if err := db.MigrateDown(*steps); err != nil {
			l.Fatalw("roll back migrations", "error", err)
		}
	default:
		if err := db.MigrateUp(); err != nil {
			l.Fatalw("apply migrations", "error", err)
		}
	}

	version, dirty, err := db.MigrationVersion()
	if err != nil {
		l.Fatalw("read migration version", "error", err)
	}
	l.Infow("schema version", "version", version, "dirty", dirty)
}
