package main

import (
	"fmt"
	"os"

	"leadgen_backend/internal/exports"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var exportKeyCmd = &cobra.Command{
	Use:   "export-key",
	Short: "Manage API keys for the forecast CSV export",
}

var exportKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a key; the plaintext is printed once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			return fmt.Errorf("--name is required")
		}
		repo, closeFn, err := exportKeyRepo(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		plaintext, hash, prefix, err := exports.GenerateAPIKey()
		if err != nil {
			return err
		}
		key, err := repo.CreateAPIKey(cmd.Context(), name, hash, prefix)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "store this key now; it cannot be shown again")
		return printJSON(map[string]any{"key": plaintext, "apiKey": key})
	},
}

var exportKeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List export API keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		repo, closeFn, err := exportKeyRepo(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		keys, err := repo.ListAPIKeys(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(keys)
	},
}

var exportKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Deactivate an export API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid key id: %w", err)
		}
		repo, closeFn, err := exportKeyRepo(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := repo.RevokeAPIKey(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "revoked %s\n", id)
		return nil
	},
}

func init() {
	exportKeyCreateCmd.Flags().String("name", "", "label for the key, e.g. the consuming team")
	exportKeyCmd.AddCommand(exportKeyCreateCmd, exportKeyListCmd, exportKeyRevokeCmd)
}

func exportKeyRepo(cmd *cobra.Command) (*exports.Repository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return exports.NewRepository(pool), pool.Close, nil
}
