// Package migrate implements the migration engine: it plans a
// plaintext-to-reference rewrite across config, auth stores, the encrypted
// payload, and the env file; applies the plan atomically behind a backup
// manifest; and supports rollback.
package migrate

import (
	"github.com/openclaw/gateway/internal/gwconfig"
)

// Counters tallies what a plan (and, after apply, the applied plan)
// changed (spec.md §4.6.2).
type Counters struct {
	ConfigRefs        int
	AuthProfileRefs    int
	PlaintextRemoved   int
	SecretsWritten     int
	EnvEntriesRemoved  int
	AuthStoresChanged  int
}

// AuthStoreTarget is one discovered auth-profile store (spec.md §4.6 step 6).
type AuthStoreTarget struct {
	Path  string // canonicalized absolute path
	Scope string // agent directory name, or "path-<sha1prefix>"
}

// BackupTarget names one file that will be written, or whose absence will
// be recorded, during apply (spec.md §4.6 step 10).
type BackupTarget struct {
	Path string
}

// Note flags a site the plan could not fully normalize (spec.md §9 Open
// Question (a): byte-preserving Google Chat service-account clones).
type Note struct {
	Site    string
	Message string
}

// Plan is the output of Build: every intended change, computed without
// touching disk (spec.md §4.6, buildMigrationPlan).
type Plan struct {
	NextConfig gwconfig.Tree
	// ConfigPath is where NextConfig is written back to on apply, when
	// ConfigChanged.
	ConfigPath  string
	NextPayload map[string]any

	ConfigChanged  bool
	PayloadChanged bool

	FilePath  string // the sops-encrypted payload path this plan targets
	SopsCfg   string // .sops.yaml/.sops.yml path, or "" if absent

	AuthStores       []AuthStoreTarget
	NextAuthStores   map[string]gwconfig.Tree // keyed by AuthStoreTarget.Path

	EnvPath        string
	NextEnv        string // scrubbed contents; empty if no scrub was performed
	EnvScrubbed    bool

	Counters Counters

	BackupTargets []BackupTarget
	Notes         []Note

	// migratedValues is the set of plaintext values written to the
	// payload during this plan, used by the env scrubber (spec.md §4.6.3).
	migratedValues map[string]struct{}
}

// Changed reports whether applying this plan would modify anything on
// disk (spec.md §4.6.4, "If plan.changed is false").
func (p *Plan) Changed() bool {
	return p.ConfigChanged || p.PayloadChanged || p.EnvScrubbed || p.Counters.AuthStoresChanged > 0
}

// ApplyResult is returned by Apply.
type ApplyResult struct {
	Mode     string // "write"
	Changed  bool
	BackupID string
	Counters Counters
}

// RollbackResult is returned by Rollback (spec.md §4.6.5).
type RollbackResult struct {
	BackupID      string
	RestoredFiles []string
	DeletedFiles  []string
}
