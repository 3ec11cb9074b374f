package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// SchemaError reports every schema violation of a scenario file.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "scenario does not match schema:\n  " + strings.Join(e.Violations, "\n  ")
}

// validateSchema unifies the raw YAML document with #Scenario.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return &SchemaError{Violations: []string{"empty document"}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var violations []string
		for _, e := range errors.Errors(err) {
			violations = append(violations, e.Error())
		}
		return &SchemaError{Violations: violations}
	}

	return nil
}
