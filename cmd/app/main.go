package main

import (
	"log"
	"os"

	"github.com/avolkhin/image-moderation/config"
	"github.com/avolkhin/image-moderation/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf(".env load error: %s", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	app.Run(cfg)
}
