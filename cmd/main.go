package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/NgigiN/groupbanker/internal/cli"
	"github.com/NgigiN/groupbanker/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; the environment may already carry the settings.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cli.Execute(cli.NewRootCommand(cfg), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
