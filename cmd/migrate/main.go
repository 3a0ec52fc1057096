package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const usage = "Usage: go run ./cmd/migrate [drop|up|seed]"

// Demo identifiers used by seed
const (
	seedStoreID = "3f1c2a7e-9d4b-4c1a-8f7e-2b6d5a9c0e11"
	seedPromoID = "8a6e0f2b-5c3d-4e7f-9a1b-c2d3e4f5a6b7"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS winners CASCADE`,
		`DROP TABLE IF EXISTS consent_logs CASCADE`,
		`DROP TABLE IF EXISTS entries CASCADE`,
		`DROP TABLE IF EXISTS api_keys CASCADE`,
		`DROP TABLE IF EXISTS promos CASCADE`,
		`DROP TABLE IF EXISTS stores CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", getTableName(query))
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS stores (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			shop_domain VARCHAR(255) UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS promos (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			prize_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
			prize_description TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'draft'
				CHECK (status IN ('draft', 'active', 'paused', 'ended')),
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			max_entries_per_email INTEGER NOT NULL DEFAULT 1 CHECK (max_entries_per_email > 0),
			max_entries_per_ip INTEGER CHECK (max_entries_per_ip > 0),
			enable_purchase_entries BOOLEAN NOT NULL DEFAULT FALSE,
			rules_text TEXT,
			eligibility_text TEXT,
			amoe_instructions TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Entries are append only. entry_seq numbers the entries of one
		// identity, so the unique key backs the per-email cap.
		`CREATE TABLE IF NOT EXISTS entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			promo_id UUID NOT NULL REFERENCES promos(id) ON DELETE CASCADE,
			hashed_email CHAR(64) NOT NULL,
			entry_seq INTEGER NOT NULL CHECK (entry_seq > 0),
			source VARCHAR(20) NOT NULL
				CHECK (source IN ('klaviyo', 'mailchimp', 'aweber', 'sendgrid', 'amoe', 'purchase', 'direct')),
			ip_address TEXT,
			user_agent TEXT,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			contact_sealed BYTEA,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (promo_id, hashed_email, entry_seq)
		)`,

		`CREATE TABLE IF NOT EXISTS consent_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			entry_id UUID NOT NULL UNIQUE REFERENCES entries(id) ON DELETE CASCADE,
			consent_brand BOOLEAN NOT NULL DEFAULT FALSE,
			consent_rafl BOOLEAN NOT NULL DEFAULT FALSE,
			consent_text TEXT NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			key_prefix CHAR(12) NOT NULL UNIQUE,
			key_hash CHAR(64) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// One winner per promotion; a redraw is a separate operation
		`CREATE TABLE IF NOT EXISTS winners (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			promo_id UUID NOT NULL UNIQUE REFERENCES promos(id) ON DELETE CASCADE,
			store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
			entry_id UUID NOT NULL REFERENCES entries(id),
			hashed_email CHAR(64) NOT NULL,
			customer_email TEXT,
			prize_description TEXT,
			drawn_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_promos_store ON promos(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_promos_lifecycle ON promos(end_date) WHERE status IN ('active', 'paused')`,
		`CREATE INDEX IF NOT EXISTS idx_entries_promo_email ON entries(promo_id, hashed_email)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_promo_ip ON entries(promo_id, ip_address)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_store ON api_keys(store_id)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Applied: %s\n", getTableName(query))
	}

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`INSERT INTO stores (id, name, shop_domain) VALUES
			('` + seedStoreID + `', 'Demo Store', 'demo-store.myshopify.com')
		ON CONFLICT (id) DO NOTHING`,

		`INSERT INTO promos (
			id, store_id, title, prize_amount, prize_description, status,
			start_date, end_date, max_entries_per_email, enable_purchase_entries,
			rules_text, eligibility_text, amoe_instructions
		) VALUES (
			'` + seedPromoID + `', '` + seedStoreID + `', 'Spring Giveaway', 1000,
			'$1,000 store gift card', 'active',
			NOW() - INTERVAL '1 day', NOW() + INTERVAL '30 days', 5, TRUE,
			'Win {PRIZE_AMOUNT}. Runs from {START_DATE} to {END_DATE}.',
			'Open to legal residents aged 18 or older.',
			'No purchase necessary. Mail a postcard before {END_DATE}.'
		)
		ON CONFLICT (id) DO NOTHING`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	fmt.Printf("  Store: %s\n", seedStoreID)
	fmt.Printf("  Promo: %s\n", seedPromoID)
	fmt.Println("  Issue a credential with: raflctl credential create --store " + seedStoreID + " --label demo")
	return nil
}

// getTableName returns the object a DDL statement touches, for progress output
func getTableName(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if (f == "EXISTS" || f == "ON") && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], "(")
		}
	}
	return query
}
