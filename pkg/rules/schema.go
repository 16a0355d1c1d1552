package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "voidvault://rules.schema.json"

var (
	compiled     *jsonschema.Schema
	compileErr   error
	compiledOnce sync.Once
)

func rulesSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add rules schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
	})
	return compiled, compileErr
}

// ValidateDocument checks raw rules file content against the embedded schema.
func ValidateDocument(data []byte) error {
	schema, err := rulesSchema()
	if err != nil {
		return err
	}

	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("rules file is not valid JSON: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("rules file does not match schema: %w", err)
	}
	return nil
}
