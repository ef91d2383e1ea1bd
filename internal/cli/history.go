package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/export"
	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
)

var (
	historyStatus string
	historyFrom   string
	historyTo     string
	historyLimit  int
	historyJSON   bool

	exportOut string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scans, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded scans to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, exportCmd} {
		c.Flags().StringVar(&historyStatus, "status", "", "only scans with this status (RUNNING, OK, FAILED)")
		c.Flags().StringVar(&historyFrom, "from", "", "first day, YYYY-MM-DD")
		c.Flags().StringVar(&historyTo, "to", "", "last day, YYYY-MM-DD")
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of scans")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output scans as JSON")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "fichas.xlsx", "output file")
	rootCmd.AddCommand(historyCmd, exportCmd)
}

// historyFilter builds the repository filter from the shared flags. Both
// days are inclusive.
func historyFilter() (repository.ListFilter, error) {
	var f repository.ListFilter
	if historyStatus != "" {
		f.Status = strings.ToUpper(historyStatus)
		v := common.NewValidator().Field("status", f.Status, common.OneOf(constants.ScanStatuses...))
		if err := v.Error(); err != nil {
			return f, err
		}
	}
	if historyFrom != "" {
		t, err := time.ParseInLocation("2006-01-02", historyFrom, time.UTC)
		if err != nil {
			return f, fmt.Errorf("%w: --from must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		f.From = &t
	}
	if historyTo != "" {
		t, err := time.ParseInLocation("2006-01-02", historyTo, time.UTC)
		if err != nil {
			return f, fmt.Errorf("%w: --to must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	return f, nil
}

func openScans(cmd *cobra.Command) (*repository.DB, repository.ScanRepository, error) {
	db, err := repository.Open(cmd.Context(), repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repository.NewScanRepository(db, logger), nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	f, err := historyFilter()
	if err != nil {
		return err
	}
	f.Limit = historyLimit

	db, scans, err := openScans(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := scans.List(cmd.Context(), f)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if historyJSON {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal scans: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No scans found.")
		return nil
	}
	for _, sc := range list {
		name := sc.Fields[constants.FieldNome]
		if sc.ErrorMessage != nil {
			name = *sc.ErrorMessage
		}
		review := ""
		if sc.NeedsReview {
			review = " [revisar]"
		}
		fmt.Fprintf(w, "%s  %-7s %s  %s%s\n",
			sc.StartedAt.Local().Format("2006-01-02 15:04"), sc.Status, sc.ID, name, review)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	f, err := historyFilter()
	if err != nil {
		return err
	}

	db, scans, err := openScans(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := export.NewService(scans, logger).ExportScansXLSX(cmd.Context(), f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", exportOut, len(data))
	return nil
}
