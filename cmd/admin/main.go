// Command admin provisions the database and accounts that cannot be created
// through the public API.
package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
