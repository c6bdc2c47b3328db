// Package snapshot builds RuntimeSnapshots: it walks a validated
// configuration and a set of auth stores, replaces every recognized
// SecretRef with its resolved value, and returns a fully-materialized,
// immutable snapshot plus non-fatal warnings. It never writes to disk.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/jsonpointer"
	"github.com/openclaw/gateway/internal/resolve"
	"github.com/openclaw/gateway/internal/secretref"
	"github.com/openclaw/gateway/internal/sopstool"
)

// WarningOverridesPlaintext is the only warning code the core emits
// (spec.md §3, §4.4 step 3).
const WarningOverridesPlaintext = "SECRETS_REF_OVERRIDES_PLAINTEXT"

// Warning is a non-fatal condition observed while building a snapshot.
type Warning struct {
	Code    string
	Message string
	Site    string
}

// AuthStoreEntry pairs an agent directory with its (snapshot-mutated, never
// persisted) auth-profile store.
type AuthStoreEntry struct {
	AgentDir string
	Store    gwconfig.Tree
}

// RuntimeSnapshot is immutable once built (spec.md §3). Callers must treat
// every field as read-only; nothing in this package mutates a returned
// snapshot after Prepare returns.
type RuntimeSnapshot struct {
	Config     gwconfig.Tree
	AuthStores []AuthStoreEntry
	Warnings   []Warning
	ResolvedAt time.Time
}

// LoadAuthStore loads the auth-profile store for agentDir, or returns
// (nil, nil) when no store exists for that agent.
type LoadAuthStore func(agentDir string) (gwconfig.Tree, error)

// Input bundles Prepare's parameters (spec.md §4.4's prepareSnapshot).
type Input struct {
	Config        gwconfig.Tree
	Env           map[string]string
	AgentDirs     []string
	LoadAuthStore LoadAuthStore
	Driver        *sopstool.Driver
	SopsCfg       string
}

// Prepare implements prepareSnapshot (spec.md §4.4). now is injected so the
// caller controls ResolvedAt's monotonic ordering rather than this package
// reaching for wall-clock time directly.
func Prepare(ctx context.Context, in Input, now time.Time) (*RuntimeSnapshot, error) {
	cfg := gwconfig.DeepCopy(map[string]any(in.Config)).(map[string]any)

	rctx := resolve.Context{
		Config:  gwconfig.Tree(cfg),
		Env:     in.Env,
		Cache:   &resolve.Cache{},
		Driver:  in.Driver,
		SopsCfg: in.SopsCfg,
	}

	var warnings []Warning

	if err := walkProviders(ctx, cfg, rctx, &warnings); err != nil {
		return nil, err
	}
	if err := walkSkills(ctx, cfg, rctx, &warnings); err != nil {
		return nil, err
	}
	if err := walkGoogleChat(ctx, cfg, rctx, &warnings); err != nil {
		return nil, err
	}

	authStores, err := walkAuthStores(ctx, in, rctx, &warnings)
	if err != nil {
		return nil, err
	}

	return &RuntimeSnapshot{
		Config:     gwconfig.Tree(cfg),
		AuthStores: authStores,
		Warnings:   warnings,
		ResolvedAt: now,
	}, nil
}

// resolveAndSet resolves ref and writes the resolved value at pointer
// within cfg, returning the resolved value for callers that need it to
// detect and record a plaintext-override warning.
func resolveAndSet(ctx context.Context, cfg map[string]any, rctx resolve.Context, ref secretref.Ref, pointer string) (string, error) {
	value, err := resolve.ResolveString(ctx, ref, rctx)
	if err != nil {
		return "", err
	}
	if err := jsonpointer.Set(cfg, pointer, value); err != nil {
		return "", err
	}
	return value, nil
}

func warnOverride(warnings *[]Warning, site string) {
	*warnings = append(*warnings, Warning{
		Code:    WarningOverridesPlaintext,
		Message: fmt.Sprintf("site %s has both a SecretRef and a plaintext sibling; the resolved value wins", site),
		Site:    site,
	})
}
