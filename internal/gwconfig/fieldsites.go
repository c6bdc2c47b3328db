package gwconfig

import "github.com/openclaw/gateway/internal/jsonpointer"

// ProviderAPIKeyPointer addresses models.providers.<providerId>.apiKey.
func ProviderAPIKeyPointer(providerID string) string {
	return jsonpointer.Build("models", "providers", providerID, "apiKey")
}

// SkillAPIKeyPointer addresses skills.entries.<skillKey>.apiKey.
func SkillAPIKeyPointer(skillKey string) string {
	return jsonpointer.Build("skills", "entries", skillKey, "apiKey")
}

// GoogleChatServiceAccountPointer addresses the top-level
// channels.googlechat.serviceAccount (or serviceAccountRef when ref is true).
func GoogleChatServiceAccountPointer(ref bool) string {
	field := "serviceAccount"
	if ref {
		field = "serviceAccountRef"
	}
	return jsonpointer.Build("channels", "googlechat", field)
}

// GoogleChatAccountServiceAccountPointer addresses
// channels.googlechat.accounts.<accountId>.serviceAccount (or ...Ref).
func GoogleChatAccountServiceAccountPointer(accountID string, ref bool) string {
	field := "serviceAccount"
	if ref {
		field = "serviceAccountRef"
	}
	return jsonpointer.Build("channels", "googlechat", "accounts", accountID, field)
}

// AuthProfileKeyPointer addresses profiles.<profileId>.key (or keyRef).
func AuthProfileKeyPointer(profileID string, ref bool) string {
	field := "key"
	if ref {
		field = "keyRef"
	}
	return jsonpointer.Build("profiles", profileID, field)
}

// AuthProfileTokenPointer addresses profiles.<profileId>.token (or tokenRef).
func AuthProfileTokenPointer(profileID string, ref bool) string {
	field := "token"
	if ref {
		field = "tokenRef"
	}
	return jsonpointer.Build("profiles", profileID, field)
}

// PayloadProviderAPIKeyPointer addresses the encrypted-payload pointer a
// provider apiKey migrates to: /providers/<providerId>/apiKey.
func PayloadProviderAPIKeyPointer(providerID string) string {
	return jsonpointer.Build("providers", providerID, "apiKey")
}

// PayloadSkillAPIKeyPointer addresses /skills/entries/<skillKey>/apiKey.
func PayloadSkillAPIKeyPointer(skillKey string) string {
	return jsonpointer.Build("skills", "entries", skillKey, "apiKey")
}

// PayloadGoogleChatServiceAccountPointer addresses
// /channels/googlechat/serviceAccount.
func PayloadGoogleChatServiceAccountPointer() string {
	return jsonpointer.Build("channels", "googlechat", "serviceAccount")
}

// PayloadGoogleChatAccountServiceAccountPointer addresses
// /channels/googlechat/accounts/<accountId>/serviceAccount.
func PayloadGoogleChatAccountServiceAccountPointer(accountID string) string {
	return jsonpointer.Build("channels", "googlechat", "accounts", accountID, "serviceAccount")
}

// PayloadAuthProfileKeyPointer addresses
// /auth-profiles/<scope>/<profileId>/key.
func PayloadAuthProfileKeyPointer(scope, profileID string) string {
	return jsonpointer.Build("auth-profiles", scope, profileID, "key")
}

// PayloadAuthProfileTokenPointer addresses
// /auth-profiles/<scope>/<profileId>/token.
func PayloadAuthProfileTokenPointer(scope, profileID string) string {
	return jsonpointer.Build("auth-profiles", scope, profileID, "token")
}
