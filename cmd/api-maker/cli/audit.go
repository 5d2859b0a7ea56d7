package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/api-maker/internal/adminstore"
)

func newAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent operations from the audit log",
		Long: `Print the newest entries from the bookkeeping audit log: entity, action,
parameter names, outcome, and duration for each executed operation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := adminstore.NewStore(resolveDataDir())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.RecentAudit(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}
			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries to show")
	return cmd
}
