package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check that the scan database is reachable and migrated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, _, err := openScans(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.HealthCheck(cmd.Context(), cfg.Database.DialTimeout); err != nil {
			return err
		}
		kind := "sqlite"
		if repository.IsPostgres(cfg.Database.DSN) {
			kind = "postgres"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DB health OK (%s)\n", kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbhealthCmd)
}
