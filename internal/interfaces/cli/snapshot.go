package cli

import (
	"github.com/spf13/cobra"
)

func newSnapshotCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import accounts, products and invoices as JSON files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export DIR",
		Short: "Write accounts.json, products.json and invoices.json into DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.app.Snapshots.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}, &cobra.Command{
		Use:   "import DIR",
		Short: "Insert the records of a snapshot that are not in the store yet",
		Long: `Import reads accounts.json, products.json and invoices.json from DIR and
inserts them in one transaction. Records already in the store are skipped.
Files written by older installs are accepted: plain passwords are hashed
and invoices without a tenant take their seller's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.app.Snapshots.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})
	return cmd
}
