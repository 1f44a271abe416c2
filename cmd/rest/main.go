package main

import (
	"context"
	"log"

	"ai-scribe-be/internal/bootstrap"
	"ai-scribe-be/internal/config"
	"ai-scribe-be/internal/server"
	"ai-scribe-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer - DISABLED
	// shutdownTracer := tracer.InitTracer()
	// defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Pipeline
	if err := container.Orchestrator.Run(context.Background()); err != nil {
		log.Fatalf("Unable to start pipeline orchestrator: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
