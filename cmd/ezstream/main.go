// Package main is the entry point for the ezstream control plane.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/truongvando/ezstream-sub000/cmd/ezstream/cmd"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
