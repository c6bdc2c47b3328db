package migrate

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
)

// authProfilesFile is the conventional filename of an agent's auth-profile
// store under its state directory.
const authProfilesFile = "auth-profiles.json"

// discoverAuthStores enumerates the canonical default store, every
// directory under <stateDir>/agents/*/agent/auth-profiles.json, and every
// store pointed to by explicitPaths (the resolved per-agent directories in
// config), de-duplicated by canonicalized absolute path (spec.md §4.6 step
// 6, §9 Open Question (b)).
//
// A path that fails to resolve (e.g. a dangling symlink) is kept as its
// cleaned absolute form rather than dropped — Open Question (b) resolved.
func discoverAuthStores(stateDir, defaultStorePath string, explicitPaths []string) ([]AuthStoreTarget, error) {
	seen := make(map[string]struct{})
	var targets []AuthStoreTarget

	add := func(path, scopeHint string) error {
		canon, err := canonicalize(path)
		if err != nil {
			return err
		}
		if _, dup := seen[canon]; dup {
			return nil
		}
		seen[canon] = struct{}{}
		targets = append(targets, AuthStoreTarget{Path: canon, Scope: scopeFor(canon, scopeHint)})
		return nil
	}

	if defaultStorePath != "" {
		if err := add(defaultStorePath, ""); err != nil {
			return nil, err
		}
	}

	agentsDir := filepath.Join(stateDir, "agents")
	entries, err := os.ReadDir(agentsDir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(agentsDir, e.Name(), "agent", authProfilesFile)
			if _, statErr := os.Stat(path); statErr != nil {
				continue
			}
			if err := add(path, e.Name()); err != nil {
				return nil, err
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	for _, path := range explicitPaths {
		if err := add(path, ""); err != nil {
			return nil, err
		}
	}

	return targets, nil
}

// canonicalize resolves path to an absolute, symlink-evaluated form. When
// EvalSymlinks fails (the target doesn't exist, or a component is a
// dangling symlink), the cleaned absolute path is used instead of failing
// discovery.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// scopeFor computes the auth-store scope used for pointer naming: the
// agent directory name when the store is under the standard layout, else
// path-<sha1(pathname)[0..8]> (spec.md §4.6 step 6).
func scopeFor(canonPath, agentDirHint string) string {
	if agentDirHint != "" {
		return agentDirHint
	}
	sum := sha1.Sum([]byte(canonPath))
	return "path-" + hex.EncodeToString(sum[:])[:8]
}
