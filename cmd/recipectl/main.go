package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-recipe-cache/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
