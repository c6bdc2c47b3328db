package migrate

import (
	"encoding/json"
	"fmt"
	"strings"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/xeipuuv/gojsonschema"
)

// secretRefSchema describes the SecretRef shape so apiKey/
// serviceAccount fields can be validated as "string, SecretRef, or (for
// serviceAccount) object" without repeating the oneOf everywhere.
const secretRefSchema = `{
  "type": "object",
  "required": ["source", "id"],
  "properties": {
    "source": {"enum": ["env", "file"]},
    "id": {"type": "string"}
  }
}`

// configSchemaJSON validates the recognized config FieldSite shapes (spec.md
// §3): provider/skill apiKey as string-or-SecretRef, Google Chat
// serviceAccount as string/object-or-SecretRef, and the secrets.sources.file
// block. Auth-profile stores are separate files and are not covered. It is
// deliberately permissive about everything else in the tree — the config
// loader and validator outside this core own the rest of the schema
// (spec.md §1, Out-of-scope).
var configSchemaJSON = fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "models": {
      "type": "object",
      "properties": {
        "providers": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "properties": {
              "apiKey": {"oneOf": [{"type": "string"}, %s]}
            }
          }
        }
      }
    },
    "skills": {
      "type": "object",
      "properties": {
        "entries": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "properties": {
              "apiKey": {"oneOf": [{"type": "string"}, %s]}
            }
          }
        }
      }
    },
    "channels": {
      "type": "object",
      "properties": {
        "googlechat": {
          "type": "object",
          "properties": {
            "serviceAccount": {"oneOf": [{"type": "string"}, {"type": "object"}]},
            "serviceAccountRef": %s,
            "accounts": {
              "type": "object",
              "additionalProperties": {
                "type": "object",
                "properties": {
                  "serviceAccount": {"oneOf": [{"type": "string"}, {"type": "object"}]},
                  "serviceAccountRef": %s
                }
              }
            }
          }
        }
      }
    },
    "secrets": {
      "type": "object",
      "properties": {
        "sources": {
          "type": "object",
          "properties": {
            "file": {
              "type": "object",
              "required": ["type", "path"],
              "properties": {
                "type": {"const": "sops"},
                "path": {"type": "string"},
                "timeoutMs": {"type": "integer"}
              }
            }
          }
        }
      }
    }
  }
}`, secretRefSchema, secretRefSchema, secretRefSchema, secretRefSchema)

// validateConfig validates tree against configSchemaJSON, turning each
// gojsonschema error's Field() into a "/"-delimited pointer path for the
// "reporting each issue with its pointer path" requirement (spec.md §4.6
// step 1).
func validateConfig(tree gwconfig.Tree) error {
	schemaLoader := gojsonschema.NewBytesLoader([]byte(configSchemaJSON))

	docBytes, err := json.Marshal(map[string]any(tree))
	if err != nil {
		return fmt.Errorf("marshal config for validation: %w", err)
	}
	documentLoader := gojsonschema.NewBytesLoader(docBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		pointer := "/" + strings.ReplaceAll(desc.Field(), ".", "/")
		messages = append(messages, fmt.Sprintf("%s: %s", pointer, desc.Description()))
	}
	return dserrors.ValidationError{
		Message: "config is invalid:\n  - " + strings.Join(messages, "\n  - "),
	}
}
