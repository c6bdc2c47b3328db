package migrate

import (
	"encoding/json"
	"os"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/secretref"
)

// migrateAuthStores loads every discovered auth store, applies the
// key/keyRef and token/tokenRef migration rule to each api_key/token
// profile, and records the rewritten stores that actually changed into
// plan.NextAuthStores (spec.md §4.6.1, auth profiles). A store that does
// not exist on disk, or fails to parse as a JSON object, is skipped
// silently — migration only touches stores it can read.
func migrateAuthStores(targets []AuthStoreTarget, plan *Plan) error {
	for _, target := range targets {
		raw, err := os.ReadFile(target.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		var store map[string]any
		if err := json.Unmarshal(raw, &store); err != nil {
			continue
		}

		original := gwconfig.DeepCopy(store)
		changed := false

		profiles, ok := store["profiles"].(map[string]any)
		if ok {
			for _, profileID := range sortedKeys(profiles) {
				profile, ok := profiles[profileID].(map[string]any)
				if !ok {
					continue
				}
				mutated, err := migrateAuthProfile(profile, plan, target.Scope, profileID)
				if err != nil {
					return err
				}
				changed = changed || mutated
			}
		}

		if !changed || gwconfig.StructurallyEqual(original, store) {
			continue
		}
		plan.NextAuthStores[target.Path] = gwconfig.Tree(store)
		plan.Counters.AuthStoresChanged++
	}
	return nil
}

func migrateAuthProfile(profile map[string]any, plan *Plan, scope, profileID string) (bool, error) {
	switch profile["type"] {
	case "api_key":
		return migrateAuthProfileSecret(profile, plan, "key", "keyRef",
			gwconfig.PayloadAuthProfileKeyPointer(scope, profileID))
	case "token":
		return migrateAuthProfileSecret(profile, plan, "token", "tokenRef",
			gwconfig.PayloadAuthProfileTokenPointer(scope, profileID))
	default:
		return false, nil
	}
}

// migrateAuthProfileSecret applies spec.md §4.6.1's auth-profile rule: if a
// ref sibling already exists alongside lingering plaintext, drop the
// plaintext and leave the ref untouched; otherwise, if plaintext is
// present, migrate it into the payload and replace it with a ref.
func migrateAuthProfileSecret(profile map[string]any, plan *Plan, plainField, refField, payloadPointer string) (bool, error) {
	_, hasRef, err := secretref.Parse(profile[refField])
	if err != nil {
		return false, err
	}

	plaintext, hasPlaintext := profile[plainField]
	if hasRef {
		if hasPlaintext {
			delete(profile, plainField)
			plan.Counters.PlaintextRemoved++
			return true, nil
		}
		return false, nil
	}
	if !hasPlaintext {
		return false, nil
	}

	trimmed, ok := trimmedNonEmptyString(plaintext)
	if !ok {
		return false, nil
	}

	if err := writePayloadIfChanged(plan.NextPayload, payloadPointer, trimmed, plan); err != nil {
		return false, err
	}
	plan.migratedValues[trimmed] = struct{}{}

	profile[refField] = secretref.ToValue(secretref.Ref{Source: secretref.FileSource, ID: payloadPointer})
	delete(profile, plainField)
	plan.Counters.AuthProfileRefs++
	return true, nil
}
