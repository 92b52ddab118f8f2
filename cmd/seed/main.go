package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"telegram-bot-fleet/internal/config"
	pg "telegram-bot-fleet/internal/infra/db/postgres"
	"telegram-bot-fleet/internal/infra/security"
)

func main() {
	// ---- Config ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "migrations/001_init.sql", "schema file to apply before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// Apply schema (idempotent: everything is CREATE ... IF NOT EXISTS or
	// CREATE OR REPLACE).
	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}

	// If customers already exist, do nothing
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&count); err != nil {
		log.Fatalf("count customers: %v", err)
	}
	if count > 0 {
		fmt.Printf("%d customers already present. No changes.\n", count)
		return
	}

	// Seed a few sample customers for local testing. The tokens are fakes;
	// run the app with -dev so the noop factory accepts them.
	seed := []struct {
		Name  string
		Token string
	}{
		{"Acme Support", "1000001:fake-token-acme"},
		{"Globex Alerts", "1000002:fake-token-globex"},
		{"Initech Notify", "1000003:fake-token-initech"},
	}

	for _, s := range seed {
		id := uuid.NewString()
		ct, err := enc.Encrypt(s.Token)
		if err != nil {
			log.Fatalf("encrypt token for %q: %v", s.Name, err)
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO customers (id, display_name, bot_token) VALUES ($1,$2,$3)`,
			id, s.Name, ct); err != nil {
			log.Fatalf("insert customer %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s)\n", s.Name, id)
	}

	fmt.Println("✅ Seeding complete.")
}
