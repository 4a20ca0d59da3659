package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/originguard/cmd/configure/commands"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var rootCmd = &cobra.Command{
		Use:           "originguard-configure",
		Short:         "Configuration tool for the origin guard API",
		Long:          "CLI tool for managing and checking allowed CORS origins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewCorsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
