package main

import (
	"log"

	"crewdesk/config"
	"crewdesk/internal/domain"
	"crewdesk/pkg/database"
)

func main() {
	cfg := config.LoadConfig()
	db := database.Connect(cfg)

	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	log.Println("Migrations applied")
}
