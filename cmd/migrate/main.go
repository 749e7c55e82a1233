package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Memesold/vk-tg-repost-bot/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "./vktg.db", "Path to the database file")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database file not found: %s", *dbPath)
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}

	fmt.Println("Applying initial schema...")
	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Println("Schema applied successfully. You can now restart the service.")
}
