package cli

import (
	"github.com/spf13/cobra"

	"github.com/vaultflow/vaultflow/pkg/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vaultflow build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.Full())
			return nil
		},
	}
}
