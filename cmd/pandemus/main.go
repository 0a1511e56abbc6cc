package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pandemus/internal/client"
	"pandemus/internal/config"
	"pandemus/internal/epidemic"
	"pandemus/internal/profiles"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.ClientConfig
	logger *slog.Logger
	out    io.Writer
}

func (a *app) catalog() (*profiles.Catalog, error) {
	loader, err := profiles.NewLoader(a.cfg.ProfilesFile, a.logger)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}

func (a *app) factorMode() (epidemic.FactorMode, error) {
	return epidemic.ParseFactorMode(a.cfg.FactorMode)
}

func (a *app) client() *client.Client {
	return client.NewClient(a.cfg.APIURL, a.cfg.Timeout, a.logger)
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	var (
		apiURL       string
		profilesFile string
		factorMode   string
		logLevel     string
	)

	rootCmd := &cobra.Command{
		Use:   "pandemus",
		Short: "Pandemus - epidemic outbreak simulator",
		Long: `Pandemus runs a discrete-day SIRD model for a population, applies
public health measures from a disease profile and stores simulation
records on a pandemus-api server.

Environment:
  PANDEMUS_API_URL  base URL of the API (default http://localhost:3000/api)
  PROFILES_FILE     YAML file extending the built-in disease profiles
  FACTOR_MODE       overwrite or compound
  LOG_LEVEL         DEBUG, INFO, WARN or ERROR`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIURL = apiURL
			}
			if flags.Changed("profiles-file") {
				cfg.ProfilesFile = profilesFile
			}
			if flags.Changed("factor-mode") {
				cfg.FactorMode = factorMode
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: config.ParseLevel(cfg.LogLevel),
			}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "pandemus-api base URL (overrides PANDEMUS_API_URL)")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles-file", "", "YAML profile catalog (overrides PROFILES_FILE)")
	rootCmd.PersistentFlags().StringVar(&factorMode, "factor-mode", "", "how measures combine: overwrite or compound")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newSimulateCmd(a),
		newCompareCmd(a),
		newProfilesCmd(a),
		newSaveCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
