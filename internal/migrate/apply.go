package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/sopstool"
)

// ApplyParams bundles Apply's inputs alongside the plan itself.
type ApplyParams struct {
	Driver                *sopstool.Driver
	StateDir              string
	MissingBinaryMessage  string
	KeepBackups           int
}

// Apply executes a previously built Plan (spec.md §4.6.4). If the plan
// changes nothing, it returns immediately without touching the backup
// directory. Otherwise it backs up every target the plan will write, then
// writes the encrypted payload, the config file, each auth store, and the
// env file in that order (spec.md §4.6.4 step 3); a failure in any of those
// writes triggers a rollback to the just-created backup and returns a
// MigrationError, or a RollbackError if that rollback itself fails.
func Apply(ctx context.Context, plan *Plan, params ApplyParams, now time.Time) (*ApplyResult, error) {
	if !plan.Changed() {
		return &ApplyResult{Mode: "write", Changed: false, Counters: plan.Counters}, nil
	}

	keep := params.KeepBackups
	if keep <= 0 {
		keep = 20
	}

	manifest, _, err := createBackup(params.StateDir, now, plan.BackupTargets)
	if err != nil {
		return nil, fmt.Errorf("create migration backup: %w", err)
	}

	if err := applyPlan(ctx, plan, params); err != nil {
		if _, _, rollbackErr := restoreFromManifest(manifest); rollbackErr != nil {
			return nil, dserrors.RollbackError{
				BackupID: manifest.BackupID,
				Message:  fmt.Sprintf("migration write failed (%v) and the automatic rollback did not complete", err),
				Err:      rollbackErr,
			}
		}
		return nil, dserrors.MigrationError{BackupID: manifest.BackupID, Err: err}
	}

	if err := pruneOldBackups(params.StateDir, keep); err != nil {
		return nil, fmt.Errorf("migration applied with backup %s, but pruning old backups failed: %w", manifest.BackupID, err)
	}

	return &ApplyResult{
		Mode:     "write",
		Changed:  true,
		BackupID: manifest.BackupID,
		Counters: plan.Counters,
	}, nil
}

func applyPlan(ctx context.Context, plan *Plan, params ApplyParams) error {
	if plan.PayloadChanged {
		if err := os.MkdirAll(filepath.Dir(plan.FilePath), 0o700); err != nil {
			return err
		}
		if err := params.Driver.Encrypt(ctx, plan.FilePath, plan.NextPayload,
			gwconfig.DefaultFileSourceTimeoutMs, params.MissingBinaryMessage, plan.SopsCfg); err != nil {
			return err
		}
	}

	if plan.ConfigChanged {
		data, err := gwconfig.DumpYAML(plan.NextConfig)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(plan.ConfigPath, data, 0o644); err != nil {
			return err
		}
	}

	for path, store := range plan.NextAuthStores {
		data, err := json.MarshalIndent(map[string]any(store), "", "  ")
		if err != nil {
			return err
		}
		if err := writeFileAtomic(path, data, 0o600); err != nil {
			return err
		}
	}

	if plan.EnvScrubbed {
		if err := writeFileAtomic(plan.EnvPath, []byte(plan.NextEnv), 0o600); err != nil {
			return err
		}
	}

	return nil
}
