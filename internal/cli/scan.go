package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/app"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
)

var (
	scanImage     string
	scanJSON      bool
	scanFill      bool
	scanNoHistory bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Capture one frame, recognize it and print the form fields",
	Long: `Opens the configured capture device (or --image), takes a single snapshot,
runs OCR and field extraction, then releases the device. With --fill the
record is also handed off as a FILL_DESBRAVADOR_FORM message on stdout.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanImage, "image", "", "read the frame from an image file instead of the capture device")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "output the record as JSON")
	scanCmd.Flags().BoolVar(&scanFill, "fill", false, "emit the hand-off message after extraction")
	scanCmd.Flags().BoolVar(&scanNoHistory, "no-history", false, "do not record the scan in the database")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	opts := []app.Option{app.WithNotifier(notify.NewConsoleNotifier(cmd.ErrOrStderr()))}
	if scanImage != "" {
		opts = append(opts, app.WithDevice(capture.NewFileDevice(scanImage)))
	}
	if scanFill {
		opts = append(opts, app.WithPublisher(publish.NewWriterPublisher(cmd.OutOrStdout())))
	}
	if scanNoHistory {
		opts = append(opts, app.WithoutHistory())
	}

	a, err := newApp(cmd, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Orchestrator.StartCamera(ctx); err != nil {
		return err
	}
	defer a.Orchestrator.StopCamera()

	rec, started, err := a.Orchestrator.Process(ctx)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("scan did not start (state %s)", a.Orchestrator.State())
	}

	if scanFill {
		_, err := a.Orchestrator.FillForm(ctx)
		return err
	}
	return printRecord(cmd, rec, scanJSON)
}
