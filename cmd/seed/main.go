package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store/postgres"
)

// Seeds the floor plan: a handful of small tables plus a few large ones, all
// AVAILABLE. Safe to run once against a fresh database.
func main() {
	count := flag.Int("tables", 12, "Number of tables to create")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	st, err := postgres.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer st.Close()
	log.Println("Connected to database")

	tables := make([]domain.Table, *count)
	versions := make([]int64, *count)
	for i := range tables {
		capacity := 4
		switch {
		case i%5 == 4:
			capacity = 8
		case i%5 == 3:
			capacity = 6
		case i%5 == 0:
			capacity = 2
		}
		tables[i] = domain.Table{
			ID:       uuid.New(),
			Number:   i + 1,
			Capacity: capacity,
			Status:   enum.TableStatusAvailable,
		}
	}

	if _, err := st.PutTables(ctx, tables, versions); err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}

	for _, t := range tables {
		log.Printf("Created table %d (capacity %d): %s", t.Number, t.Capacity, t.ID)
	}
	log.Printf("Seeded %d tables", len(tables))
}
