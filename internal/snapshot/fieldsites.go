package snapshot

import (
	"context"
	"sort"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/resolve"
	"github.com/openclaw/gateway/internal/secretref"
)

// walkProviders replaces models.providers.<id>.apiKey with its resolved
// value when it holds a SecretRef. A plaintext apiKey is left untouched:
// providers and skills have no separate *Ref sibling field, so there is no
// override-wins case here (spec.md §3, §4.4 step 3 only applies to sites
// with a distinct ref field).
func walkProviders(ctx context.Context, cfg map[string]any, rctx resolve.Context, warnings *[]Warning) error {
	providers, ok := navigate(cfg, "models", "providers")
	if !ok {
		return nil
	}
	for _, id := range sortedKeys(providers) {
		entry, ok := providers[id].(map[string]any)
		if !ok {
			continue
		}
		ref, isRef, err := secretref.Parse(entry["apiKey"])
		if err != nil {
			return err
		}
		if !isRef {
			continue
		}
		pointer := gwconfig.ProviderAPIKeyPointer(id)
		if _, err := resolveAndSet(ctx, cfg, rctx, ref, pointer); err != nil {
			return err
		}
	}
	return nil
}

// walkSkills mirrors walkProviders for skills.entries.<key>.apiKey.
func walkSkills(ctx context.Context, cfg map[string]any, rctx resolve.Context, warnings *[]Warning) error {
	entries, ok := navigate(cfg, "skills", "entries")
	if !ok {
		return nil
	}
	for _, key := range sortedKeys(entries) {
		entry, ok := entries[key].(map[string]any)
		if !ok {
			continue
		}
		ref, isRef, err := secretref.Parse(entry["apiKey"])
		if err != nil {
			return err
		}
		if !isRef {
			continue
		}
		pointer := gwconfig.SkillAPIKeyPointer(key)
		if _, err := resolveAndSet(ctx, cfg, rctx, ref, pointer); err != nil {
			return err
		}
	}
	return nil
}

// walkGoogleChat handles the top-level serviceAccount/serviceAccountRef
// pair and each per-account pair under channels.googlechat.accounts.
func walkGoogleChat(ctx context.Context, cfg map[string]any, rctx resolve.Context, warnings *[]Warning) error {
	googlechat, ok := navigate(cfg, "channels", "googlechat")
	if !ok {
		return nil
	}

	if err := resolveServiceAccountSite(ctx, cfg, rctx, warnings, googlechat,
		gwconfig.GoogleChatServiceAccountPointer(false),
		"channels.googlechat.serviceAccount"); err != nil {
		return err
	}

	accounts, ok := googlechat["accounts"].(map[string]any)
	if !ok {
		return nil
	}
	for _, accountID := range sortedKeys(accounts) {
		account, ok := accounts[accountID].(map[string]any)
		if !ok {
			continue
		}
		site := "channels.googlechat.accounts." + accountID + ".serviceAccount"
		if err := resolveServiceAccountSite(ctx, cfg, rctx, warnings, account,
			gwconfig.GoogleChatAccountServiceAccountPointer(accountID, false),
			site); err != nil {
			return err
		}
	}
	return nil
}

// resolveServiceAccountSite applies the override-wins rule (spec.md §4.4
// step 3) to one serviceAccount/serviceAccountRef pair: if a ref is
// present, resolve it and overwrite serviceAccount with the resolved
// value, warning when a plaintext value was already there; then drop the
// ref field so no SecretRef remains reachable from the snapshot.
func resolveServiceAccountSite(ctx context.Context, cfg map[string]any, rctx resolve.Context, warnings *[]Warning, holder map[string]any, valuePointer, site string) error {
	refValue, hasRefField := holder["serviceAccountRef"]
	if !hasRefField {
		return nil
	}
	ref, isRef, err := secretref.Parse(refValue)
	if err != nil {
		return err
	}
	if !isRef {
		return nil
	}

	_, hadPlaintext := holder["serviceAccount"]

	if _, err := resolveAndSet(ctx, cfg, rctx, ref, valuePointer); err != nil {
		return err
	}
	if hadPlaintext {
		warnOverride(warnings, site)
	}
	delete(holder, "serviceAccountRef")
	return nil
}

func navigate(cfg map[string]any, keys ...string) (map[string]any, bool) {
	cur := cfg
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
