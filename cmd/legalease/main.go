// Package main provides the entry point for the legalease document
// processing service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "legalease",
	Short: "Tamil legal document translation service",
	Long:  "legalease OCRs scanned Tamil legal documents, translates and simplifies them into plain English, and produces a summarized, downloadable PDF via an asynchronous job pipeline.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
