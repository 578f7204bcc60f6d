package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"intenttune/adapters/filesystem"
	"intenttune/adapters/postgres"
	"intenttune/domain/core"
	"intenttune/internal"
	"intenttune/internal/migration"
)

// main copies the local run ledger (runs.jsonl under a logging directory)
// into the Postgres run tables, creating them if needed
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <database_url> <logging_dir>")
	}

	databaseURL := os.Args[1]
	loggingDir := os.Args[2]
	ledgerPath := filepath.Join(loggingDir, "runs.jsonl")

	log.Printf("Starting migration from %s", ledgerPath)

	events, err := filesystem.ReadLedger(ledgerPath)
	if core.IsNotFoundError(err) {
		log.Printf("No run ledger at %s, nothing to migrate", ledgerPath)
		return
	}
	if err != nil {
		log.Fatalf("Failed to read run ledger: %v", err)
	}
	log.Printf("Found %d ledger events to migrate", len(events))

	ctx := context.Background()
	db, err := postgres.Connect(ctx, databaseURL, migration.NewRunner(internal.DefaultLogger))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runs, err := filesystem.Replay(ctx, events, postgres.NewRunRepository(db))
	if err != nil {
		db.Close()
		log.Fatalf("Migration stopped: %v", err)
	}
	log.Printf("Migration complete: %d runs", runs)
}
