package migrate

import (
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/secretref"
)

// migrateProviders applies spec.md §4.6.1 to every models.providers.<id>.
func migrateProviders(nextConfig gwconfig.Tree, nextPayload map[string]any, plan *Plan) error {
	providers, ok := navigate(map[string]any(nextConfig), "models", "providers")
	if !ok {
		return nil
	}
	for _, id := range sortedKeys(providers) {
		entry, ok := providers[id].(map[string]any)
		if !ok {
			continue
		}
		if err := migrateSimpleAPIKeySite(entry, nextPayload, plan, gwconfig.PayloadProviderAPIKeyPointer(id)); err != nil {
			return err
		}
	}
	return nil
}

// migrateSkills mirrors migrateProviders for skills.entries.<key>.
func migrateSkills(nextConfig gwconfig.Tree, nextPayload map[string]any, plan *Plan) error {
	entries, ok := navigate(map[string]any(nextConfig), "skills", "entries")
	if !ok {
		return nil
	}
	for _, key := range sortedKeys(entries) {
		entry, ok := entries[key].(map[string]any)
		if !ok {
			continue
		}
		if err := migrateSimpleAPIKeySite(entry, nextPayload, plan, gwconfig.PayloadSkillAPIKeyPointer(key)); err != nil {
			return err
		}
	}
	return nil
}

// migrateSimpleAPIKeySite applies the single-field apiKey rule: skip if
// already a SecretRef; otherwise, if non-empty plaintext, write the
// trimmed value to the payload (deduplicated) and overwrite the field with
// a SecretRef (spec.md §4.6.1).
func migrateSimpleAPIKeySite(entry map[string]any, nextPayload map[string]any, plan *Plan, payloadPointer string) error {
	_, isRef, err := secretref.Parse(entry["apiKey"])
	if err != nil {
		return err
	}
	if isRef {
		return nil
	}

	trimmed, ok := trimmedNonEmptyString(entry["apiKey"])
	if !ok {
		return nil
	}

	if err := writePayloadIfChanged(nextPayload, payloadPointer, trimmed, plan); err != nil {
		return err
	}
	entry["apiKey"] = secretref.ToValue(secretref.Ref{Source: secretref.FileSource, ID: payloadPointer})
	plan.migratedValues[trimmed] = struct{}{}
	plan.Counters.ConfigRefs++
	return nil
}

// migrateGoogleChat applies spec.md §4.6.1's Google Chat rules to the
// top-level serviceAccount and every per-account serviceAccount.
func migrateGoogleChat(nextConfig gwconfig.Tree, nextPayload map[string]any, plan *Plan) error {
	googlechat, ok := navigate(map[string]any(nextConfig), "channels", "googlechat")
	if !ok {
		return nil
	}

	if err := migrateServiceAccountSite(googlechat, nextPayload, plan,
		gwconfig.PayloadGoogleChatServiceAccountPointer(), "channels.googlechat.serviceAccount"); err != nil {
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
		if err := migrateServiceAccountSite(account, nextPayload, plan,
			gwconfig.PayloadGoogleChatAccountServiceAccountPointer(accountID), site); err != nil {
			return err
		}
	}
	return nil
}

// migrateServiceAccountSite handles one serviceAccount/serviceAccountRef
// pair per spec.md §4.6.1: skip if serviceAccount is itself already a
// SecretRef; if a ref sibling already exists alongside plaintext, drop the
// plaintext and leave the ref untouched; otherwise, if serviceAccount is
// plaintext (string or non-empty object), migrate it.
func migrateServiceAccountSite(holder map[string]any, nextPayload map[string]any, plan *Plan, payloadPointer, site string) error {
	_, selfIsRef, err := secretref.Parse(holder["serviceAccount"])
	if err != nil {
		return err
	}
	if selfIsRef {
		return nil
	}

	_, hasRef, err := refAt(holder, "serviceAccountRef")
	if err != nil {
		return err
	}

	plaintext, hasPlaintext := holder["serviceAccount"]
	if hasRef {
		if hasPlaintext {
			delete(holder, "serviceAccount")
			plan.Counters.PlaintextRemoved++
		}
		return nil
	}
	if !hasPlaintext {
		return nil
	}

	switch v := plaintext.(type) {
	case string:
		trimmed, ok := trimmedNonEmptyString(v)
		if !ok {
			return nil
		}
		if err := writePayloadIfChanged(nextPayload, payloadPointer, trimmed, plan); err != nil {
			return err
		}
		plan.migratedValues[trimmed] = struct{}{}
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		cloned := gwconfig.DeepCopy(v)
		if err := writePayloadIfChanged(nextPayload, payloadPointer, cloned, plan); err != nil {
			return err
		}
		plan.Notes = append(plan.Notes, Note{
			Site:    site,
			Message: "service account object cloned byte-preserving into the encrypted payload; no field-level normalization was applied",
		})
	default:
		return nil
	}

	holder["serviceAccountRef"] = secretref.ToValue(secretref.Ref{Source: secretref.FileSource, ID: payloadPointer})
	delete(holder, "serviceAccount")
	plan.Counters.ConfigRefs++
	return nil
}
