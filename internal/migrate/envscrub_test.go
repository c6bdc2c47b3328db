package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubEnvRemovesExactMatch(t *testing.T) {
	t.Parallel()

	raw := "OPENAI_API_KEY=sk-openai-plaintext\nSKILL_KEY=sk-skill-plaintext\nUNRELATED=value\n"
	migrated := map[string]struct{}{"sk-openai-plaintext": {}}
	allow := map[string]struct{}{"OPENAI_API_KEY": {}, "SKILL_KEY": {}}

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "SKILL_KEY=sk-skill-plaintext\nUNRELATED=value\n", out)
}

func TestScrubEnvPreservesNonAllowListedKey(t *testing.T) {
	t.Parallel()

	raw := "SKILL_KEY=sk-skill-plaintext\n"
	migrated := map[string]struct{}{"sk-skill-plaintext": {}}
	allow := map[string]struct{}{} // SKILL_KEY not allow-listed

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 0, removed)
	assert.Equal(t, raw, out)
}

func TestScrubEnvPreservesPartialMatch(t *testing.T) {
	t.Parallel()

	raw := "OPENAI_API_KEY=sk-openai-plaintext-extra\n"
	migrated := map[string]struct{}{"sk-openai-plaintext": {}}
	allow := map[string]struct{}{"OPENAI_API_KEY": {}}

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 0, removed, "partial matches must never be removed")
	assert.Equal(t, raw, out)
}

func TestScrubEnvHandlesExportAndQuotes(t *testing.T) {
	t.Parallel()

	raw := `export OPENAI_API_KEY="sk-openai-plaintext"` + "\n"
	migrated := map[string]struct{}{"sk-openai-plaintext": {}}
	allow := map[string]struct{}{"OPENAI_API_KEY": {}}

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "\n", out)
}

func TestScrubEnvPreservesNonMatchingLines(t *testing.T) {
	t.Parallel()

	raw := "# a comment\n\nOPENAI_API_KEY=sk-openai-plaintext\n"
	migrated := map[string]struct{}{"sk-openai-plaintext": {}}
	allow := map[string]struct{}{"OPENAI_API_KEY": {}}

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "# a comment\n\n", out)
}

func TestScrubEnvNoTrailingNewlinePreserved(t *testing.T) {
	t.Parallel()

	raw := "UNRELATED=value"
	out, removed := scrubEnv(raw, map[string]struct{}{}, map[string]struct{}{})
	assert.Equal(t, 0, removed)
	assert.Equal(t, "UNRELATED=value", out)
}

func TestScrubEnvEmptyResultEndsWithNewline(t *testing.T) {
	t.Parallel()

	raw := "OPENAI_API_KEY=sk-openai-plaintext"
	migrated := map[string]struct{}{"sk-openai-plaintext": {}}
	allow := map[string]struct{}{"OPENAI_API_KEY": {}}

	out, removed := scrubEnv(raw, migrated, allow)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "\n", out)
}
