package cli

import (
	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/config"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault's fixed folder layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize(cmd.Context(), flagConfigDir)
			if err != nil {
				return usageErrorf("loading configuration: %w", err)
			}
			root := vault.NewRoot(cfg.VaultPath)
			if err := root.Init(); err != nil {
				return err
			}
			cmd.Printf("initialized vault at %s\n", cfg.VaultPath)
			return nil
		},
	}
}
