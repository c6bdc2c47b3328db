package migrate

import (
	"regexp"
	"strings"
)

var envLinePattern = regexp.MustCompile(`^\s*(export\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

// scrubEnv implements spec.md §4.6.3, a pure function over the raw .env
// contents: for each line matching KEY=VALUE (optional `export`, optional
// quoting), drop the line only if the key is in the allow-list AND its
// parsed value exactly equals one of migratedValues. Every other line,
// including non-matching lines and allow-listed keys whose value doesn't
// exactly match, is preserved verbatim. This is deliberately conservative:
// partial or derived matches must never remove a line.
func scrubEnv(raw string, migratedValues map[string]struct{}, allowList map[string]struct{}) (scrubbed string, removed int) {
	hadTrailingNewline := strings.HasSuffix(raw, "\n")
	lines := strings.Split(raw, "\n")
	if hadTrailingNewline {
		lines = lines[:len(lines)-1]
	}

	var kept []string
	for _, line := range lines {
		m := envLinePattern.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}
		key := m[2]
		if _, allowed := allowList[key]; !allowed {
			kept = append(kept, line)
			continue
		}
		value := parseEnvValue(m[3])
		if _, migrated := migratedValues[value]; migrated {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	result := strings.Join(kept, "\n")
	if hadTrailingNewline || result == "" {
		result += "\n"
	}
	return result, removed
}

// parseEnvValue strips one matched pair of surrounding single or double
// quotes, then trims surrounding whitespace.
func parseEnvValue(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			v = v[1 : len(v)-1]
		}
	}
	return strings.TrimSpace(v)
}
