package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/gateway/cmd/gateway/commands"
	"github.com/openclaw/gateway/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		stateDir   string
		noColor    bool
		debug      bool
	)

	app := commands.NewAppContext()

	rootCmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Gateway secrets core - runtime snapshot activation and secret migration",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `gateway manages the gateway secrets core: resolving SecretRefs into an
active runtime snapshot, and migrating plaintext secrets in config, auth
stores, and .env files into references backed by a sops-encrypted payload.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.ConfigPath = configFile
			app.StateDir = stateDir
			app.NoColor = noColor
			app.Debug = debug
			app.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "gateway.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "State directory (auth stores, backups)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewSecretsCommand(app),
	)

	return rootCmd.Execute()
}

func defaultStateDir() string {
	if v := os.Getenv("OPENCLAW_STATE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
