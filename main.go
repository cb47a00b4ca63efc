package main

import (
	"log"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"

	"medistock/m/internal/api"
	"medistock/m/internal/cart"
	"medistock/m/internal/config"
	"medistock/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	manager, err := store.NewManager(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to prepare data directory: %v", err)
	}
	defer manager.CloseAll()

	storage, err := cart.NewStorage(filepath.Join(cfg.DataDir, "local"))
	if err != nil {
		log.Fatalf("failed to prepare cart storage: %v", err)
	}

	handler := api.New(manager, cart.NewService(storage, manager), cfg.Secret, cfg.TaxRate)

	log.Printf("MediStock POS server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
