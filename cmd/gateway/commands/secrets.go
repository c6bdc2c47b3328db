package commands

import (
	"github.com/spf13/cobra"
)

// NewSecretsCommand creates the parent 'secrets' command.
func NewSecretsCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the secrets core's runtime snapshot and migration",
		Long: `Manage resolution of SecretRefs into the active runtime snapshot, and
migrate plaintext secrets in config, auth stores, and the env file into
references backed by the encrypted payload.

Examples:
  gateway secrets reload --json
  gateway secrets migrate --write
  gateway secrets migrate --rollback 20260102T030405Z`,
	}

	cmd.AddCommand(
		NewSecretsReloadCommand(app),
		NewSecretsMigrateCommand(app),
	)

	return cmd
}
