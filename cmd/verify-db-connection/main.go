package main

import (
	"fmt"
	"log"

	"settlement-backend/internal/config"
	"settlement-backend/internal/db"
)

// Verifies database connectivity and that the migrated settlement tables
// are present. Run after deployment or a schema change.
func main() {
	fmt.Println("Verifying database connection and settlement schema...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db.InitDB()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("Connected to database: %s\n", dbName)

	tables := []string{
		"chain_configs",
		"token_mappings",
		"synthetic_tokens",
		"token_accounts",
		"user_nonces",
		"ledger_entries",
		"processed_messages",
		"dispatch_records",
		"settlement_records",
		"locker_tokens",
		"locker_destinations",
		"chain_balance_managers",
	}

	ok := true
	for _, table := range tables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}
		if exists {
			var count int64
			if err := sqlDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
				log.Fatalf("Failed to count rows in %s: %v", table, err)
			}
			fmt.Printf("  %-24s ok (%d rows)\n", table, count)
		} else {
			fmt.Printf("  %-24s MISSING\n", table)
			ok = false
		}
	}

	if !ok {
		log.Fatal("Schema verification failed: missing tables")
	}
	fmt.Println("Schema verification passed")
}
