package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
	"github.com/joseph-ayodele/fichas-scanner/internal/server"
)

var (
	remoteAddr string
	remoteJSON bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print hand-off messages broadcast by a running fichasd",
	Long: `Subscribes to the daemon's hand-off channel and prints every
FILL_DESBRAVADOR_FORM message as one JSON line until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Drive a running fichasd over gRPC",
}

func init() {
	listenCmd.Flags().StringVar(&remoteAddr, "addr", "", "daemon address (defaults to GRPC_ADDR)")
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "daemon address (defaults to GRPC_ADDR)")
	remoteCmd.PersistentFlags().BoolVar(&remoteJSON, "json", false, "output JSON")

	remoteCmd.AddCommand(
		&cobra.Command{
			Use:   "state",
			Short: "Show the orchestrator state",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
				st, err := c.GetState(cmd.Context())
				if err != nil {
					return err
				}
				return printState(cmd, st)
			}),
		},
		&cobra.Command{
			Use:   "start",
			Short: "Turn the camera on",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
				st, err := c.StartCamera(cmd.Context())
				if err != nil {
					return err
				}
				return printState(cmd, st)
			}),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Turn the camera off",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
				stopped, err := c.StopCamera(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stopped: %t\n", stopped)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "capture",
			Short: "Process the current frame",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
				rec, started, err := c.Capture(cmd.Context())
				if err != nil {
					return err
				}
				if !started {
					return errors.New("capture ignored: camera is off or a run is in progress")
				}
				return printRecord(cmd, rec, remoteJSON)
			}),
		},
		&cobra.Command{
			Use:   "fill",
			Short: "Send the last result to the form",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
				sent, err := c.FillForm(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent: %t\n", sent)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "extract [file]",
			Short: "Parse OCR text on the daemon",
			Args:  cobra.MaximumNArgs(1),
			RunE: withClient(func(cmd *cobra.Command, c *server.Client, args []string) error {
				var (
					data []byte
					err  error
				)
				if len(args) == 0 || args[0] == "-" {
					data, err = io.ReadAll(cmd.InOrStdin())
				} else {
					data, err = os.ReadFile(args[0])
				}
				if err != nil {
					return fmt.Errorf("read text: %w", err)
				}
				rec, err := c.Extract(cmd.Context(), string(data))
				if err != nil {
					return err
				}
				return printRecord(cmd, rec, remoteJSON)
			}),
		},
	)
	rootCmd.AddCommand(listenCmd, remoteCmd)
}

func withClient(fn func(*cobra.Command, *server.Client, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr := remoteAddr
		if addr == "" {
			addr = cfg.Server.GRPCAddr
		}
		c, err := server.Dial(dialTarget(addr))
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd, c, args)
	}
}

// dialTarget turns a listen address like ":8080" into a dialable one.
func dialTarget(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func printState(cmd *cobra.Command, st server.State) error {
	w := cmd.OutOrStdout()
	if remoteJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	fmt.Fprintf(w, "state:      %s\n", st.State)
	fmt.Fprintf(w, "busy:       %t\n", st.Busy)
	fmt.Fprintf(w, "has result: %t\n", st.HasResult)
	if st.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", st.LastError)
	}
	if st.LastScanID != "" {
		fmt.Fprintf(w, "last scan:  %s\n", st.LastScanID)
	}
	return nil
}

func runListen(cmd *cobra.Command, _ []string) error {
	return withClient(func(cmd *cobra.Command, c *server.Client, _ []string) error {
		w := cmd.OutOrStdout()
		logger.Info("listening for hand-off messages")
		err := c.Subscribe(cmd.Context(), func(m publish.Message) error {
			data, err := m.Encode()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(data))
			return err
		})
		if cmd.Context().Err() != nil {
			return nil
		}
		return err
	})(cmd, nil)
}
