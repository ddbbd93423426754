package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tenantID := os.Getenv("DEFAULT_TENANT")
	if tenantID == "" {
		tenantID = uuid.New().String()
		log.Printf("DEFAULT_TENANT not set, seeding fresh tenant %s", tenantID)
	} else if _, err := uuid.Parse(tenantID); err != nil {
		log.Fatalf("DEFAULT_TENANT is not a UUID: %v", err)
	}
	log.Printf("Using Tenant ID: %s", tenantID)

	seedChannels(db, tenantID)
	seedTaxRates(db, tenantID)
	seedMethods(db, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedChannels(db *sql.DB, tenantID string) {
	channels := []struct {
		Code     string
		Name     string
		Currency string
	}{
		{"web", "Web shop", "EUR"},
		{"pos", "Point of sale", "EUR"},
		{"b2b", "B2B portal", "EUR"},
	}
	for _, c := range channels {
		_, err := db.Exec(`
			INSERT INTO channels (id, tenant_id, code, name, currency, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name, currency = EXCLUDED.currency
		`, uuid.New(), tenantID, c.Code, c.Name, c.Currency)
		if err != nil {
			log.Fatalf("Failed to seed channel %s: %v", c.Code, err)
		}
	}
	log.Printf("Seeded %d channels", len(channels))
}

func seedTaxRates(db *sql.DB, tenantID string) {
	rates := []struct {
		Name      string
		Country   string
		Rate      string
		IsDefault bool
	}{
		{"Standard rate", "DE", "0.19", true},
		{"Reduced rate", "DE", "0.07", false},
		{"Standard rate", "FR", "0.20", true},
		{"Standard rate", "NL", "0.21", true},
	}
	for _, r := range rates {
		_, err := db.Exec(`
			INSERT INTO tax_rates (id, tenant_id, name, country, rate, is_default)
			SELECT $1, $2, $3, $4, $5::numeric, $6
			WHERE NOT EXISTS (
				SELECT 1 FROM tax_rates WHERE tenant_id = $2 AND country = $4 AND name = $3
			)
		`, uuid.New(), tenantID, r.Name, r.Country, r.Rate, r.IsDefault)
		if err != nil {
			log.Fatalf("Failed to seed tax rate %s/%s: %v", r.Country, r.Name, err)
		}
	}
	log.Printf("Seeded %d tax rates", len(rates))
}

func seedMethods(db *sql.DB, tenantID string) {
	methods := []struct {
		Kind        string
		Code        string
		Name        string
		ProviderKey string
		BaseRate    string
		PerItemRate string
		FeeRate     string
		FeeFlat     string
	}{
		{"shipping", "dhl-standard", "DHL Standard", "dhl", "4.90", "0.50", "0", "0"},
		{"shipping", "dhl-express", "DHL Express", "dhl", "9.90", "0.90", "0", "0"},
		{"shipping", "pickup", "Store pickup", "manual", "0", "0", "0", "0"},
		{"payment", "stripe-card", "Credit card", "stripe", "0", "0", "0.014", "0.25"},
		{"payment", "paypal", "PayPal", "paypal", "0", "0", "0.025", "0.35"},
		{"payment", "invoice", "Pay by invoice", "manual", "0", "0", "0", "0"},
	}
	for _, m := range methods {
		_, err := db.Exec(`
			INSERT INTO methods (id, tenant_id, kind, code, name, provider_key, base_rate_net, per_item_rate_net, fee_rate, fee_flat_net, settings, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, '{}'::jsonb, TRUE)
			ON CONFLICT (tenant_id, kind, code) DO UPDATE SET
				name = EXCLUDED.name,
				provider_key = EXCLUDED.provider_key,
				base_rate_net = EXCLUDED.base_rate_net,
				per_item_rate_net = EXCLUDED.per_item_rate_net,
				fee_rate = EXCLUDED.fee_rate,
				fee_flat_net = EXCLUDED.fee_flat_net
		`, uuid.New(), tenantID, m.Kind, m.Code, m.Name, m.ProviderKey, m.BaseRate, m.PerItemRate, m.FeeRate, m.FeeFlat)
		if err != nil {
			log.Fatalf("Failed to seed method %s/%s: %v", m.Kind, m.Code, err)
		}
	}
	log.Printf("Seeded %d methods", len(methods))
}
