// Package cli implements the fichas command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/internal/app"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
)

var (
	version = "dev"

	configPath string
	logLevel   string

	cfg    *common.Config
	logger *slog.Logger

	// appOptions are applied to every App the commands build.
	appOptions []app.Option
)

var rootCmd = &cobra.Command{
	Use:           "fichas",
	Short:         "Scan guest registration forms into structured records",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := common.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		logger = common.NewLogger(c.Log, cmd.ErrOrStderr())
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug | info | warn | error")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the string printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func newApp(cmd *cobra.Command, extra ...app.Option) (*app.App, error) {
	opts := append(append([]app.Option{}, appOptions...), extra...)
	return app.New(cmd.Context(), cfg, logger, opts...)
}

func printRecord(cmd *cobra.Command, rec extract.Record, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range extract.Rules() {
		v := rec.Get(r.Key)
		if v == "" {
			v = "Não encontrado"
		}
		if _, err := fmt.Fprintf(w, "%-20s %s\n", r.Label+":", v); err != nil {
			return err
		}
	}
	return nil
}
