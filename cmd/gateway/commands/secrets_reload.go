package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/gateway/internal/activator"
	"github.com/openclaw/gateway/internal/migrate"
	"github.com/openclaw/gateway/internal/snapshot"
)

// reloadOutput is the --json payload for 'secrets reload' (spec.md §6).
type reloadOutput struct {
	Activated bool     `json:"activated"`
	Degraded  bool     `json:"degraded"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// NewSecretsReloadCommand builds a fresh RuntimeSnapshot and activates it
// (spec.md §4.5, trigger "reload").
func NewSecretsReloadCommand(app *AppContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild and activate the secrets runtime snapshot",
		Long: `Re-reads the config and auth stores, resolves every SecretRef, and
activates the result as the process-wide runtime snapshot.

If resolution fails, the previously active snapshot (if any) is kept and
the process is marked degraded; reload does not take down an already
running gateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.LoadConfig()
			if err != nil {
				return err
			}

			agentDirs := discoverAgentDirs(app.StateDir)
			env := environMap()
			sopsCfg := migrate.LocateSopsConfig(app.ConfigDir())

			activateErr := app.Activator.Activate(activator.TriggerReload, func() (*snapshot.RuntimeSnapshot, error) {
				return snapshot.Prepare(context.Background(), snapshot.Input{
					Config:        config,
					Env:           env,
					AgentDirs:     agentDirs,
					LoadAuthStore: loadAuthStore,
					Driver:        app.Driver,
					SopsCfg:       sopsCfg,
				}, time.Now())
			})

			out := reloadOutput{
				Activated: activateErr == nil,
				Degraded:  app.Activator.Degraded(),
			}
			if snap := app.Activator.GetActive(); snap != nil {
				for _, w := range snap.Warnings {
					out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", w.Code, w.Message))
				}
			}
			if activateErr != nil {
				out.Error = activateErr.Error()
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(out); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			} else if activateErr == nil {
				app.Logger.Info("secrets snapshot activated (%d warnings)", len(out.Warnings))
				for _, w := range out.Warnings {
					app.Logger.Warn(w)
				}
			} else {
				app.Logger.Error("reload failed: %v", activateErr)
				if out.Degraded {
					app.Logger.Warn("serving last-known-good snapshot")
				}
			}

			return activateErr
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
