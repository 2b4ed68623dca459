package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"graphreader/internal/engine/graph"
	"graphreader/internal/platform/config"
	"graphreader/internal/platform/database"
)

func main() {
	target := flag.String("target", "keys", "Migration target: keys or graph")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	switch *target {
	case "keys":
		db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to key store: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
	case "graph":
		// Builds <base_dir>/graph.db from the JSON snapshot for the sqlite indexer.
		snap, err := graph.LoadSnapshot(cfg.Graph.BaseDir)
		if err != nil {
			log.Fatalf("Failed to load graph snapshot: %v", err)
		}
		db, err := graph.OpenSQLite(cfg.Graph.BaseDir)
		if err != nil {
			log.Fatalf("Failed to open graph index: %v", err)
		}
		defer db.Close()
		if err := graph.Import(ctx, db, snap); err != nil {
			log.Fatalf("Failed to import graph: %v", err)
		}
		log.Printf("Imported %d entities, %d relationships, %d communities",
			len(snap.Entities), len(snap.Relationships), len(snap.Communities))
	default:
		log.Fatal("Invalid target: must be 'keys' or 'graph'")
	}

	fmt.Println("Migration completed successfully")
}
