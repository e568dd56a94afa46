package main

import (
	"context"
	"log"
	"os"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/pkg/database"
	"ai-dispatch-be/pkg/kv/gormkv"
	"ai-dispatch-be/pkg/llm/ollama"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions (Things GORM AutoMigrate doesn't do)
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Entities (The Core Task)
	log.Println("Step 2: Running AutoMigrate...")

	entities := []interface{}{
		&entity.Session{},
		&entity.Device{},
		&entity.RescueCase{},
		&entity.GraphEdge{},
	}

	if err := db.AutoMigrate(entities...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// The durable KV table backs checkpoints and task records when
	// KV_BACKEND=postgres.
	if err := gormkv.Migrate(db); err != nil {
		log.Fatalf("Error: KV migration failed: %v", err)
	}

	// 5. Seed a minimal device fleet for local development.
	log.Println("Step 3: Seeding development devices...")

	devices := []entity.Device{
		{Id: uuid.New(), Name: "lobby-cam", Kind: entity.DeviceKindCamera, Location: "Lobby", Status: entity.DeviceStatusOnline},
		{Id: uuid.New(), Name: "garage-cam", Kind: entity.DeviceKindCamera, Location: "Garage", Status: entity.DeviceStatusOnline},
		{Id: uuid.New(), Name: "front-door-lock", Kind: entity.DeviceKindLock, Location: "Front Door", Status: entity.DeviceStatusOnline},
		{Id: uuid.New(), Name: "unit-7", Kind: entity.DeviceKindResponder, Location: "Station A", Status: entity.DeviceStatusOnline},
	}
	for i := range devices {
		if err := db.Where("name = ?", devices[i].Name).FirstOrCreate(&devices[i]).Error; err != nil {
			log.Printf("Warn: Failed to seed device %s: %v", devices[i].Name, err)
		}
	}

	// 6. Seed historical rescue cases. With EMBED_MODEL set each case gets
	// an embedding so case evidence can use vector similarity; without it
	// the keyword path still works.
	log.Println("Step 4: Seeding historical rescue cases...")

	var embedder *ollama.Embedder
	if model := os.Getenv("EMBED_MODEL"); model != "" {
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		embedder = ollama.NewEmbedder(baseURL, model)
	}

	cases := []entity.RescueCase{
		{Id: uuid.New(), Title: "Collapse in lobby", Description: "Visitor collapsed near the lobby entrance, responder dispatched, recovered on site", Outcome: "resolved"},
		{Id: uuid.New(), Title: "Fall in stairwell B", Description: "Employee fell in stairwell B and injured an ankle, responder escorted to medical", Outcome: "resolved"},
		{Id: uuid.New(), Title: "Smoke in garage", Description: "Smoke detected in the parking garage, responders cleared the area, faulty exhaust fan", Outcome: "resolved"},
	}
	for i := range cases {
		if embedder != nil {
			vec, err := embedder.Embed(context.Background(), cases[i].Title+". "+cases[i].Description)
			if err != nil {
				log.Printf("Warn: Failed to embed case %q: %v", cases[i].Title, err)
			} else {
				v := pgvector.NewVector(vec)
				cases[i].Embedding = &v
			}
		}
		if err := db.Where("title = ?", cases[i].Title).FirstOrCreate(&cases[i]).Error; err != nil {
			log.Printf("Warn: Failed to seed case %q: %v", cases[i].Title, err)
		}
	}

	log.Println("Migration completed successfully.")
}
