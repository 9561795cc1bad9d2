package main

import (
	"context"
	"log"
	"os"
	"time"

	"epistat/adapters/excel"
	"epistat/internal/container"
	"epistat/internal/migration"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate <database_url|sqlite:path> [data-file...]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Connect to database
	db, err := container.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunnerFor(db.DriverName())
	for _, step := range runner.Statements() {
		log.Printf("Applying %s", step.Name)
	}
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema at version %s (%s)", runner.Version(), runner.Dialect())

	// Any further arguments are data files to import
	if len(os.Args) <= 2 {
		return
	}

	datasetRepo, _, _ := container.Repositories(db)
	imported := 0
	skipped := 0
	for _, path := range os.Args[2:] {
		ds, err := excel.NewDataReader(path).ReadDataset()
		if err != nil {
			log.Printf("Failed to read %s: %v", path, err)
			skipped++
			continue
		}
		if err := datasetRepo.Create(ctx, ds); err != nil {
			log.Printf("Failed to store %s: %v", path, err)
			skipped++
			continue
		}
		imported++
		log.Printf("Imported %s as %s (%d rows)", path, ds.ID, ds.Len())
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}
