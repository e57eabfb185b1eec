package main

import (
	"context"
	"log"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/app"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.NewBuilder(cfg, version).Build(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
