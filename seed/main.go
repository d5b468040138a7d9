package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pathwise-labs/progress_api/seed/seeders"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Parse command line flags
	var (
		apiURL  = flag.String("api", "", "Base URL of the progress API (overrides API_URL env var)")
		apiKey  = flag.String("key", "", "Plaintext service key sent as X-Service-Key (overrides SERVICE_API_KEY env var)")
		subject = flag.String("subject", "all", "Subject to publish: all, or one built-in subject id")
		file    = flag.String("file", "", "Publish a structure document from a JSON file instead of the built-in samples (requires -subject)")
		help    = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	baseURL := *apiURL
	if baseURL == "" {
		baseURL = os.Getenv("API_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8000" // Default local API
		}
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("SERVICE_API_KEY")
	}
	if key == "" {
		log.Fatal("No service key provided: pass -key or set SERVICE_API_KEY")
	}

	seeder := seeders.NewStructureSeeder(baseURL, key)

	// Structures are published through the API rather than written to the
	// database: the engine owns version numbers and bit position allocation.
	switch {
	case *file != "":
		if *subject == "" || *subject == "all" {
			log.Fatal("Publishing from a file requires -subject=<id>")
		}
		log.Printf("Publishing subject %s from %s...", *subject, *file)
		if err := seeder.PublishFile(*subject, *file); err != nil {
			log.Fatalf("Failed to publish structure: %v", err)
		}
	case *subject == "all":
		log.Println("Publishing all built-in sample subjects...")
		if err := seeder.SeedAll(); err != nil {
			log.Fatalf("Failed to publish structures: %v", err)
		}
	default:
		log.Printf("Publishing built-in subject %s...", *subject)
		if err := seeder.SeedSubject(*subject); err != nil {
			log.Fatalf("Failed to publish structure: %v", err)
		}
	}

	log.Println("Seeding operation completed successfully!")
}

func showHelp() {
	log.Println(`
Structure Seeding Tool for the Progress API

Usage: go run seed/main.go [flags]

Flags:
  -api string
        Base URL of the progress API (default "http://localhost:8000")
  -key string
        Plaintext service key sent as X-Service-Key
  -subject string
        Subject to publish (default "all")
  -file string
        Publish a structure document from a JSON file (requires -subject)
  -help
        Show this help message

Examples:
  # Publish every built-in sample subject
  go run seed/main.go -key=dev-service-key

  # Publish one built-in subject
  go run seed/main.go -key=dev-service-key -subject=math-7

  # Publish a custom document
  go run seed/main.go -key=dev-service-key -subject=science-7 -file=./science.json

Environment Variables:
  API_URL         - Default API base URL (default: http://localhost:8000)
  SERVICE_API_KEY - Default service key`)
}
