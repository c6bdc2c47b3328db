package snapshot

import (
	"context"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/resolve"
	"github.com/openclaw/gateway/internal/secretref"
)

// walkAuthStores loads each agent's auth-profile store, resolves keyRef
// (api_key profiles) and tokenRef (token profiles), and applies the
// override-wins rule against any lingering plaintext key/token sibling
// (spec.md §4.4 step 4). Auth stores are mutated only in the returned copy;
// nothing here is persisted.
func walkAuthStores(ctx context.Context, in Input, rctx resolve.Context, warnings *[]Warning) ([]AuthStoreEntry, error) {
	var entries []AuthStoreEntry
	for _, agentDir := range in.AgentDirs {
		store, err := in.LoadAuthStore(agentDir)
		if err != nil {
			return nil, err
		}
		if store == nil {
			continue
		}

		storeCopy := gwconfig.DeepCopy(map[string]any(store)).(map[string]any)
		profiles, ok := storeCopy["profiles"].(map[string]any)
		if ok {
			for _, profileID := range sortedKeys(profiles) {
				profile, ok := profiles[profileID].(map[string]any)
				if !ok {
					continue
				}
				if err := resolveAuthProfile(ctx, storeCopy, rctx, warnings, agentDir, profileID, profile); err != nil {
					return nil, err
				}
			}
		}

		entries = append(entries, AuthStoreEntry{AgentDir: agentDir, Store: gwconfig.Tree(storeCopy)})
	}
	return entries, nil
}

func resolveAuthProfile(ctx context.Context, storeCopy map[string]any, rctx resolve.Context, warnings *[]Warning, agentDir, profileID string, profile map[string]any) error {
	switch profile["type"] {
	case "api_key":
		return resolveProfileSecret(ctx, storeCopy, rctx, warnings, agentDir, profileID, profile,
			"key", "keyRef", gwconfig.AuthProfileKeyPointer(profileID, false))
	case "token":
		return resolveProfileSecret(ctx, storeCopy, rctx, warnings, agentDir, profileID, profile,
			"token", "tokenRef", gwconfig.AuthProfileTokenPointer(profileID, false))
	default:
		return nil
	}
}

func resolveProfileSecret(ctx context.Context, storeCopy map[string]any, rctx resolve.Context, warnings *[]Warning, agentDir, profileID string, profile map[string]any, plainField, refField, valuePointer string) error {
	refValue, hasRef := profile[refField]
	if !hasRef {
		return nil
	}
	ref, isRef, err := secretref.Parse(refValue)
	if err != nil {
		return err
	}
	if !isRef {
		return nil
	}

	_, hadPlaintext := profile[plainField]

	if _, err := resolveAndSet(ctx, storeCopy, rctx, ref, valuePointer); err != nil {
		return err
	}
	if hadPlaintext {
		warnOverride(warnings, agentDir+":profiles."+profileID+"."+plainField)
	}
	delete(profile, refField)
	return nil
}
