// Package main is a diagnostic tool for checking database connectivity and the
// state of the audit store. It prints the golang-migrate version, the recorded
// schema versions and the audit_log partitions with their retention status.
// The binary exits non-zero on any failure so it can gate deployments in CI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/config"
	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/repositories"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migration, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Migration version: %d (dirty: %v)\n", migration, dirty)

	sqlxDB := db.Wrap(database)

	fmt.Println("\n=== SCHEMA VERSIONS ===")
	versions, err := repositories.NewSchemaVersionRepository(sqlxDB).List(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if len(versions) == 0 {
		fmt.Println("No schema versions recorded!")
	}
	for _, v := range versions {
		fmt.Printf("%-12s %s by %s: %s\n", v.Version, v.AppliedAt.Format(time.RFC3339), v.AppliedBy, v.Description)
	}

	fmt.Println("\n=== AUDIT PARTITIONS ===")
	partitions, err := repositories.NewAuditLogRepository(sqlxDB).ListPartitions(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	now := time.Now().UTC()
	current := audit.PartitionName(now)
	standardCutoff := now.Add(-audit.Window(audit.PolicyStandard))
	missingCurrent := true
	for _, name := range partitions {
		start, ok := audit.ParsePartitionName(name)
		if !ok {
			fmt.Printf("%s (unrecognised name)\n", name)
			continue
		}
		state := "retained"
		switch {
		case name == current:
			state = "current"
			missingCurrent = false
		case start.After(now):
			state = "future"
		case !start.AddDate(0, 1, 0).After(standardCutoff):
			state = "past standard retention"
		}
		fmt.Printf("%s %s\n", name, state)
	}

	if missingCurrent {
		log.Fatalf("Partition %s for the current month is missing", current)
	}
}
