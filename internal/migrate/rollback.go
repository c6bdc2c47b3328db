package migrate

import (
	"path/filepath"

	dserrors "github.com/openclaw/gateway/internal/errors"
)

// Rollback restores every file recorded under backupId's manifest (spec.md
// §4.6.5). It is idempotent: restoring an already-restored file, or
// deleting an already-absent one, succeeds silently.
func Rollback(backupID, stateDir string) (*RollbackResult, error) {
	backupDir := filepath.Join(backupsDir(stateDir), backupID)

	manifest, err := loadManifest(backupDir)
	if err != nil {
		return nil, dserrors.RollbackError{BackupID: backupID, Message: "could not load backup manifest", Err: err}
	}

	restored, deleted, err := restoreFromManifest(manifest)
	if err != nil {
		return nil, dserrors.RollbackError{BackupID: backupID, Message: "could not restore one or more files", Err: err}
	}

	return &RollbackResult{
		BackupID:      backupID,
		RestoredFiles: restored,
		DeletedFiles:  deleted,
	}, nil
}
