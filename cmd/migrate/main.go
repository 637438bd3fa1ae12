package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"workchat/config"
	"workchat/internal/domain/user"
	"workchat/internal/repository"
	"workchat/internal/services"
	"workchat/pkg/database"

	"github.com/google/uuid"
)

const usage = `
Workchat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update the chat schema
  status      Show database connection status
  seed        Seed one company with test users and conversations

Flags:
  -users int         Number of users to seed (default 5)
  -company string    Company id to seed into (default: a new id)
  -token-ttl string  Lifetime of printed access tokens (default "24h")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go -users 8 seed
`

func main() {
	users := flag.Int("users", 5, "Number of users to seed")
	company := flag.String("company", "", "Company id to seed into")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of printed access tokens")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := repository.InitSchema(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "status":
		showStatus()
	case "seed":
		runSeed(cfg, repository.NewGormStore(db), *users, *company, *tokenTTL)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus() {
	log.Println("Checking database status...")
	if err := database.HealthCheck(context.Background()); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range []string{"users", "conversations", "participants", "conversation_invitations", "messages", "message_reads"} {
		var count int64
		if !database.DB.Migrator().HasTable(table) {
			log.Printf("Table %-26s does not exist", table)
			continue
		}
		database.DB.Table(table).Count(&count)
		log.Printf("Table %-26s exists (%d rows)", table, count)
	}
}

func runSeed(cfg *config.Config, store repository.Store, users int, company string, ttl time.Duration) {
	seedCfg := database.DefaultSeedConfig()
	seedCfg.UserCount = users
	if company != "" {
		id, err := uuid.Parse(company)
		if err != nil {
			log.Fatalf("Invalid company id: %v", err)
		}
		seedCfg.CompanyID = id
	}

	result, err := database.Seed(context.Background(), store, seedCfg)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	auth := services.NewAuthService(nil, cfg.JWTSecret)
	log.Println("Seed Summary:")
	log.Printf("   - Company: %s", result.CompanyID)
	log.Printf("   - Conversations: %d", len(result.Conversations))
	for _, u := range result.Users {
		token, err := auth.SignAccessToken(user.Principal{UserID: u.ID, CompanyID: u.CompanyID}, ttl)
		if err != nil {
			log.Fatalf("Signing token failed: %v", err)
		}
		log.Printf("   - %s (%s) token: %s", u.Username, u.ID, token)
	}
}
