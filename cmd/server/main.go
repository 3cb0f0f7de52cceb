package main

import (
	"context"
	"errors"
	"io/fs"
	"log"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {

	// a missing .env is fine; the environment may be set by other means
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
