// Package main provides the entry point for the manuscript corrector.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "corrector_agent",
	Short: "Manuscript correction agent",
	Long:  "Turns audit findings into located, reviewable manuscript corrections: approximate quote search, span rewriting via a generative service, and structural chapter resolution, locally or via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
