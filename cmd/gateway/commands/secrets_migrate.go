package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/gateway/internal/migrate"
)

// migrateOutput is the --json payload for 'secrets migrate' (spec.md §6).
type migrateOutput struct {
	Mode              string `json:"mode"`
	Changed           bool   `json:"changed"`
	BackupID          string `json:"backupId,omitempty"`
	ConfigRefs        int    `json:"configRefs"`
	AuthProfileRefs   int    `json:"authProfileRefs"`
	PlaintextRemoved  int    `json:"plaintextRemoved"`
	SecretsWritten    int    `json:"secretsWritten"`
	EnvEntriesRemoved int    `json:"envEntriesRemoved"`
	AuthStoresChanged int    `json:"authStoresChanged"`
	RestoredFiles     []string `json:"restoredFiles,omitempty"`
	DeletedFiles      []string `json:"deletedFiles,omitempty"`
}

// NewSecretsMigrateCommand builds (and, with --write, applies) a migration
// plan, or rolls one back with --rollback (spec.md §4.6).
func NewSecretsMigrateCommand(app *AppContext) *cobra.Command {
	var (
		write        bool
		noScrubEnv   bool
		jsonOutput   bool
		rollbackID   string
		allowListEnv []string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite plaintext secrets in config, auth stores, and .env into references",
		Long: `Scans the config, discovered auth stores, and .env file for plaintext
secrets at the recognized field sites, and rewrites them as SecretRefs
backed by the sops-encrypted payload.

Without --write, this prints what would change. With --write, the changes
are applied atomically behind a backup manifest; a failure during apply
triggers an automatic rollback. Use --rollback <backupId> to undo a
previous --write.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rollbackID != "" {
				return runRollback(app, rollbackID, jsonOutput)
			}
			return runMigrate(app, write, !noScrubEnv, allowListEnv, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Apply the migration plan instead of only reporting it")
	cmd.Flags().BoolVar(&noScrubEnv, "no-scrub-env", false, "Skip removing migrated values from the .env file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&rollbackID, "rollback", "", "Roll back a previous migration by backup id")
	cmd.Flags().StringSliceVar(&allowListEnv, "env-allow", nil, "Env var names eligible for .env scrubbing")

	return cmd
}

func runMigrate(app *AppContext, write, scrubEnv bool, allowListEnv []string, jsonOutput bool) error {
	config, err := app.LoadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	plan, err := migrate.Build(ctx, migrate.BuildParams{
		Config:               config,
		ConfigDir:            app.ConfigDir(),
		ConfigPath:           app.ConfigPath,
		Driver:               app.Driver,
		StateDir:             app.StateDir,
		AgentAuthDirs:        agentAuthStorePaths(app.StateDir),
		ScrubEnv:             scrubEnv,
		AllowListEnvNames:    allowListEnv,
		MissingBinaryMessage: missingSopsMessage,
	})
	if err != nil {
		return err
	}

	out := migrateOutput{
		Mode:              "plan",
		Changed:           plan.Changed(),
		ConfigRefs:        plan.Counters.ConfigRefs,
		AuthProfileRefs:   plan.Counters.AuthProfileRefs,
		PlaintextRemoved:  plan.Counters.PlaintextRemoved,
		SecretsWritten:    plan.Counters.SecretsWritten,
		EnvEntriesRemoved: plan.Counters.EnvEntriesRemoved,
		AuthStoresChanged: plan.Counters.AuthStoresChanged,
	}

	if write {
		result, err := migrate.Apply(ctx, plan, migrate.ApplyParams{
			Driver:               app.Driver,
			StateDir:             app.StateDir,
			MissingBinaryMessage: missingSopsMessage,
		}, time.Now())
		if err != nil {
			return err
		}
		out.Mode = result.Mode
		out.Changed = result.Changed
		out.BackupID = result.BackupID
	}

	return printMigrateOutput(app, out, plan.Notes, jsonOutput)
}

func runRollback(app *AppContext, backupID string, jsonOutput bool) error {
	result, err := migrate.Rollback(backupID, app.StateDir)
	if err != nil {
		return err
	}

	out := migrateOutput{
		Mode:          "rollback",
		Changed:       len(result.RestoredFiles)+len(result.DeletedFiles) > 0,
		BackupID:      result.BackupID,
		RestoredFiles: result.RestoredFiles,
		DeletedFiles:  result.DeletedFiles,
	}
	return printMigrateOutput(app, out, nil, jsonOutput)
}

func printMigrateOutput(app *AppContext, out migrateOutput, notes []migrate.Note, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}

	switch out.Mode {
	case "plan":
		if !out.Changed {
			app.Logger.Info("no plaintext secrets found; nothing to migrate")
			return nil
		}
		app.Logger.Info("migration plan: %d config refs, %d auth profile refs, %d plaintext removed, %d secrets written, %d env entries removed, %d auth stores changed",
			out.ConfigRefs, out.AuthProfileRefs, out.PlaintextRemoved, out.SecretsWritten, out.EnvEntriesRemoved, out.AuthStoresChanged)
		app.Logger.Info("re-run with --write to apply")
	case "write":
		if !out.Changed {
			app.Logger.Info("no plaintext secrets found; nothing was written")
			return nil
		}
		app.Logger.Info("migration applied, backup id %s", out.BackupID)
	case "rollback":
		app.Logger.Info("restored %d file(s), removed %d file(s) from backup %s",
			len(out.RestoredFiles), len(out.DeletedFiles), out.BackupID)
	}

	for _, note := range notes {
		app.Logger.Warn("%s: %s", note.Site, note.Message)
	}
	return nil
}
