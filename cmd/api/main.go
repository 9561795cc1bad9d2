package main

import (
	"context"
	"log"
	"time"

	"epistat/adapters/api"
	"epistat/internal/config"
	"epistat/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := container.OpenDatabase(context.Background(), appConfig.Database.URL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		appContainer.InitInMemory()
		appContainer.StartSessionSweeper(15 * time.Minute)
	}

	if _, err := appContainer.PreloadDataFile(context.Background()); err != nil {
		log.Fatalf("Failed to load %s: %v", appConfig.Data.DataFile, err)
	}

	server := api.NewServer(appContainer.Datasets, appContainer.Reports, appConfig.Server.MaxUploadMB)
	log.Fatal(server.Start(":" + appConfig.Server.APIPort))
}
