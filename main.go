package main

import (
	"log"
	"net/http"

	"github.com/Mathiio/edisem-sub000/pkg/config"
	"github.com/Mathiio/edisem-sub000/pkg/handlers"
	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/middleware"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Log startup configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Store: %s", logging.SanitizeURL(cfg.Store.BaseURL))
	log.Printf("  Types dir: %s", cfg.Engine.TypesDir)

	registry, err := rtconfig.LoadDir(cfg.Engine.TypesDir)
	if err != nil {
		log.Fatalf("Failed to load resource type configurations: %v", err)
	}
	log.Printf("  Resource types: %v", registry.Names())

	client := store.NewClient(&cfg.Store, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	resourceHandler := handlers.NewResourceHandler(registry, client, cfg.Engine.RecommendationMax, nil, logger)
	resourceHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	log.Printf("Starting edisem-engine on %s (version: %s)", addr, cfg.Version)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
