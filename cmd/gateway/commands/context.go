// Package commands implements the gateway CLI's secrets command family:
// reload (on-demand snapshot activation) and migrate (plaintext-to-reference
// rewrite, with --write/--rollback).
package commands

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/openclaw/gateway/internal/activator"
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/sopstool"
	pkgexec "github.com/openclaw/gateway/pkg/exec"
)

const missingSopsMessage = "sops is not installed or not on PATH"

// authProfilesFileName is the conventional filename of an agent's
// auth-profile store under its state directory, matching
// internal/migrate's own authProfilesFile constant.
const authProfilesFileName = "auth-profiles.json"

// AppContext bundles everything the secrets subcommands share: the config
// path, a logger, and the single process-wide Activator (spec.md §4.5,
// "process-wide state").
type AppContext struct {
	ConfigPath string
	StateDir   string
	NoColor    bool
	Debug      bool

	Logger    *logging.Logger
	Activator *activator.Activator
	Driver    *sopstool.Driver
}

// NewAppContext wires a fresh driver and activator around the real
// subprocess executor; production main() owns exactly one of these.
func NewAppContext() *AppContext {
	return &AppContext{
		Driver:    sopstool.New(pkgexec.DefaultExecutor()),
		Activator: activator.New(nil, nil),
	}
}

// ConfigDir is the directory the config file lives in, used to locate
// .sops.yaml and the .env file alongside it.
func (a *AppContext) ConfigDir() string {
	return filepath.Dir(a.ConfigPath)
}

// LoadConfig reads and decodes the config file at ConfigPath.
func (a *AppContext) LoadConfig() (gwconfig.Tree, error) {
	data, err := os.ReadFile(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	return gwconfig.LoadYAML(data)
}

// environMap snapshots the process environment into the map shape
// resolve.Context expects.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}

// discoverAgentDirs lists <stateDir>/agents/*/agent as candidate auth-store
// directories, mirroring migrate's own discovery sweep (spec.md §4.4 step
// 4, §4.6 step 6). A missing agents directory yields no entries.
func discoverAgentDirs(stateDir string) []string {
	agentsDir := filepath.Join(stateDir, "agents")
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(agentsDir, e.Name(), "agent"))
		}
	}
	return dirs
}

// agentAuthStorePaths resolves discoverAgentDirs' agent directories into
// their auth-profile store file paths, for callers (migrate.BuildParams.
// AgentAuthDirs) that expect literal files rather than directories.
func agentAuthStorePaths(stateDir string) []string {
	dirs := discoverAgentDirs(stateDir)
	if dirs == nil {
		return nil
	}
	paths := make([]string, len(dirs))
	for i, dir := range dirs {
		paths[i] = filepath.Join(dir, authProfilesFileName)
	}
	return paths
}

// loadAuthStore implements snapshot.LoadAuthStore against the filesystem:
// JSON auth-profiles.json under agentDir, absent file yields (nil, nil).
func loadAuthStore(agentDir string) (gwconfig.Tree, error) {
	path := filepath.Join(agentDir, authProfilesFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return gwconfig.LoadJSON(data)
}
