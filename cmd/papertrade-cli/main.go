package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"papertrade/pkg/papertrade"
)

const version = "0.1.0"

var (
	serverURL string
	asJSON    bool
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	defaultServer := "http://localhost:8080"
	if v := os.Getenv("PAPERTRADE_SERVER"); v != "" {
		defaultServer = v
	}

	root := &cobra.Command{
		Use:           "papertrade-cli",
		Short:         "Script the papertrade server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "papertrade-server base URL")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		quoteCmd(),
		historyCmd(),
		newsCmd(),
		portfolioCmd(),
		buyCmd(),
		sellCmd(),
		tradesCmd(),
		valuationCmd(),
		resetCmd(),
	)
	return root
}

func client() *papertrade.Client {
	return papertrade.NewClient(serverURL)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
