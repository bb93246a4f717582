package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"lab-backend/internal/config"
	"lab-backend/internal/database"
	"lab-backend/internal/db"
	"lab-backend/migrations"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	tenantID := flag.Int("tenant", 1, "tenant to seed demo data for")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset Lab Database for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("⚠️  WARNING: This will DELETE ALL BILLING DATA!")
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  - Delete all invoices, payment events and audit logs")
	fmt.Println("  - Delete all payouts, purchases and cash book entries")
	fmt.Println("  - Delete all doctors, patients and lab tests")
	fmt.Println("  - Restart invoice numbering at INV-000001")
	fmt.Printf("  - Seed demo doctors, tests and a patient for tenant %d\n", *tenantID)
	fmt.Println()

	if !*yes {
		fmt.Print("Type 'yes' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v\n", err)
	}

	fmt.Println()
	fmt.Println("🔄 Resetting database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"report_records",
		"invoice_items",
		"payment_events",
		"invoices",
		"audit_logs",
		"payouts",
		"purchase_invoices",
		"cash_book_entries",
		"doctors",
		"patients",
		"lab_tests",
	}
	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  ✓ Cleared %s\n", table)
	}

	if _, err := tx.Exec(ctx, "ALTER SEQUENCE invoice_number_sequence RESTART WITH 1"); err != nil {
		log.Fatalf("Failed to reset invoice numbering: %v\n", err)
	}
	fmt.Println("  ✓ Reset invoice numbering")

	doctors := []struct {
		name       string
		introducer bool
		kind       string
		value      string
	}{
		{"Dr. Rao", false, "PERCENTAGE", "10"},
		{"Dr. Mehta", false, "FIXED", "150"},
		{"Sunrise Clinic", true, "PERCENTAGE", "5"},
	}
	for _, d := range doctors {
		if _, err := tx.Exec(ctx, `
			INSERT INTO doctors (tenant_id, name, is_introducer, commission_type, commission_value)
			VALUES ($1, $2, $3, $4, $5)`,
			*tenantID, d.name, d.introducer, d.kind, d.value,
		); err != nil {
			log.Fatalf("Failed to create doctor %s: %v\n", d.name, err)
		}
	}
	fmt.Println("  ✓ Created demo doctors")

	tests := []struct {
		name  string
		price string
		gst   string
	}{
		{"Complete Blood Count", "400", "0"},
		{"Thyroid Profile", "600", "0"},
		{"HbA1c", "500", "18"},
		{"MRI Brain", "6500", "0"},
	}
	for _, t := range tests {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lab_tests (tenant_id, name, price, gst_percentage)
			VALUES ($1, $2, $3, $4)`,
			*tenantID, t.name, t.price, t.gst,
		); err != nil {
			log.Fatalf("Failed to create test %s: %v\n", t.name, err)
		}
	}
	fmt.Println("  ✓ Created demo lab tests")

	if _, err := tx.Exec(ctx, `INSERT INTO patients (tenant_id, name, phone) VALUES ($1, $2, $3)`,
		*tenantID, "Demo Patient", "9876543210"); err != nil {
		log.Fatalf("Failed to create patient: %v\n", err)
	}
	fmt.Println("  ✓ Created demo patient")

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Println("✅ Database reset successful!")
	fmt.Println()
	fmt.Println("Issue a token with:")
	fmt.Printf("  go run ./cmd/token -user 1 -tenant %d -role admin\n", *tenantID)
}
