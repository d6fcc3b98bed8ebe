// Command main seeds the database with demo data for development.
package main

import (
	"context"
	"flag"
	"log"

	"courtyard/internal/config"
	"courtyard/internal/database"
	"courtyard/internal/seed"
)

func main() {
	residents := flag.Int("residents", 20, "number of resident accounts to create")
	staff := flag.Int("staff", 3, "number of staff accounts to create")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	if err := seed.Run(context.Background(), db, seed.Options{
		NumResidents:  *residents,
		NumStaff:      *staff,
		CommunityName: cfg.CommunityName,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
