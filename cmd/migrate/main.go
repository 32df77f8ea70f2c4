package main

import (
	"flag"
	"log"

	"chatsync-be/internal/config"
	"chatsync-be/internal/model"
	"chatsync-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	check := flag.Bool("check", false, "only report missing tables, change nothing")
	flag.Parse()

	cfg := config.Load()
	db, err := database.NewGormDB(database.Options{DSN: cfg.Database.Connection, Production: cfg.IsProduction()})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if *check {
		if missing := missingTables(db); len(missing) > 0 {
			log.Fatalf("Missing tables: %v", missing)
		}
		log.Println("Schema is up to date")
		return
	}

	// gen_random_uuid() defaults on chats and chat_messages
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		log.Printf("Warn: pgcrypto extension not created: %v", err)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}
	log.Printf("Migrated %d tables", len(model.All()))
}

func missingTables(db *gorm.DB) []string {
	var missing []string
	for _, m := range model.All() {
		if !db.Migrator().HasTable(m) {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(m); err == nil {
				missing = append(missing, stmt.Schema.Table)
			}
		}
	}
	return missing
}
