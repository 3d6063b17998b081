// Command vendctl operates a vending ledger, either a local SQLite file or a
// running server over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/vending-ledger/internal/config"
)

const version = "v0.1.0"

var (
	configDir  string
	dbPath     string
	grpcAddr   string
	sender     string
	jsonOutput bool

	// client is opened in PersistentPreRunE for every command except version.
	client ledgerClient
)

func main() {
	err := rootCmd.Execute()
	if closeErr := closeClient(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vendctl",
	Short: "vendctl manages a vending machine inventory ledger",
	Long: `vendctl initializes a vending ledger, withdraws and restocks items and
reports the current inventory. By default it works on a local SQLite file;
with --grpc it talks to a running vending-ledger server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: openClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite ledger file (default: sqlite.path from config)")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "grpc", "", "address of a vending-ledger server")
	rootCmd.PersistentFlags().StringVar(&sender, "sender", "", "identity of the caller")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(versionCmd, initCmd, withdrawCmd, restockCmd, itemsCmd, auditCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "vendctl "+version)
	},
}

func openClient(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	if grpcAddr != "" {
		c, err := newRemoteClient(grpcAddr)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := dbPath
	if path == "" {
		path = cfg.SQLite.Path
	}

	c, err := newLocalClient(cmd.Context(), path)
	if err != nil {
		return err
	}
	client = c
	return nil
}

// closeClient runs after every command, including failed ones, so queued
// audit records are flushed.
func closeClient() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}
