package main

import (
	"context"
	"log"
	"time"

	"epistat/internal/config"
	"epistat/internal/container"
	"epistat/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	// Create dependency injection container
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// Database storage when configured, in-memory otherwise
	if appConfig.Database.Enabled() {
		db, err := container.OpenDatabase(context.Background(), appConfig.Database.URL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		log.Println("DATABASE_URL not set, datasets and reports are kept in memory")
		appContainer.InitInMemory()
		appContainer.StartSessionSweeper(15 * time.Minute)
	}

	if ds, err := appContainer.PreloadDataFile(context.Background()); err != nil {
		log.Fatalf("Failed to load %s: %v", appConfig.Data.DataFile, err)
	} else if ds != nil {
		log.Printf("Preloaded %s (%d rows)", ds.OriginalFilename, ds.Len())
	}

	study := appConfig.Study
	log.Printf("Study %q: outcome %s, exposures %v, Yates correction %t",
		study.Name, study.OutcomeColumn, study.ExposureColumns, study.Yates())

	// Initialize web server
	server, err := ui.NewServer(appContainer.Datasets, appContainer.Reports, ui.Options{
		MaxUploadMB: appConfig.Server.MaxUploadMB,
		SessionTTL:  time.Duration(appConfig.Server.SessionTTLHr) * time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
