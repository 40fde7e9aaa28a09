package transcoder

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// CheckToolSchemas runs a structural sanity pass over each tool
// declaration's raw schema JSON, returning one warning string per
// declaration that is not a well-formed JSON Schema object. This never
// rejects a request and never validates a tool call's *arguments*
// against the schema (spec.md §1/§11's Non-goal) — it only catches a
// malformed `parameters`/`input_schema` block early enough to log it
// instead of forwarding it upstream silently broken.
func CheckToolSchemas(tools []types.ToolDeclaration) []string {
	var warnings []string
	for _, tool := range tools {
		if strings.TrimSpace(tool.SchemaJSON) == "" {
			continue
		}
		if err := compileSchema(tool.Name, tool.SchemaJSON); err != nil {
			warnings = append(warnings, fmt.Sprintf("tool %q: %v", tool.Name, err))
		}
	}
	return warnings
}

func compileSchema(name, schemaJSON string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}

	url := "mem://tool-schema/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return fmt.Errorf("not a usable schema resource: %w", err)
	}
	if _, err := c.Compile(url); err != nil {
		return fmt.Errorf("not a well-formed JSON Schema: %w", err)
	}
	return nil
}
