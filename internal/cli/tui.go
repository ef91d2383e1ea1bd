package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/app"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
	"github.com/joseph-ayodele/fichas-scanner/internal/tui"
)

var (
	tuiImage   string
	tuiHandoff string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive scanner screen",
	Long: `Opens a terminal screen to turn the camera on, capture a form, review the
extracted fields and send them to the form. Only errors are logged while
the screen is open.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiImage, "image", "", "use an image file as the camera")
	tuiCmd.Flags().StringVar(&tuiHandoff, "handoff-file", "", "also append hand-off messages to this file as JSON lines")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	notices := notify.NewChan(8)
	defer notices.Close()
	transitions := make(chan pipeline.Transition, 32)

	// logs would corrupt the alternate screen
	quiet := common.NewLogger(common.LogConfig{Level: "error", Format: cfg.Log.Format}, cmd.ErrOrStderr())

	opts := []app.Option{
		app.WithNotifier(notices),
		app.WithObserver(tui.Observer(transitions)),
	}
	if tuiImage != "" {
		opts = append(opts, app.WithDevice(capture.NewFileDevice(tuiImage)))
	}
	if tuiHandoff != "" {
		f, err := openAppend(tuiHandoff)
		if err != nil {
			return err
		}
		defer f.Close()
		opts = append(opts, app.WithPublisher(publish.NewWriterPublisher(f)))
	}

	a, err := app.New(cmd.Context(), cfg, quiet, append(append([]app.Option{}, appOptions...), opts...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(cmd.Context(), tui.New(cmd.Context(), a.Orchestrator, notices.C(), transitions))
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
