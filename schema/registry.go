// Package schema validates publish payloads against optional per-event-type
// JSON Schemas.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry holds compiled JSON Schemas keyed by event type. Event types
// without a registered schema validate unconditionally.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema // keyed by event type
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles the schema document and binds it to the event type,
// replacing any previous binding.
func (r *Registry) Register(eventType string, schemaJSON json.RawMessage) error {
	if eventType == "" {
		return fmt.Errorf("schema: event type required")
	}

	compiled, err := compile(eventType, schemaJSON)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schemas[eventType] = compiled
	r.mu.Unlock()

	return nil
}

// Unregister removes the schema for an event type.
func (r *Registry) Unregister(eventType string) {
	r.mu.Lock()
	delete(r.schemas, eventType)
	r.mu.Unlock()
}

// Validate checks data against the schema registered for the event type.
// No registered schema means the payload is accepted as-is.
func (r *Registry) Validate(eventType string, data any) error {
	r.mu.RLock()
	compiled, ok := r.schemas[eventType]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	// Normalize through JSON so struct payloads validate the same way as
	// map payloads.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("schema: marshal payload: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: unmarshal payload: %w", err)
	}

	return compiled.Validate(doc)
}

func compile(eventType string, schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("schema: unmarshal schema: %w", err)
	}

	// Use a unique URL as the schema resource identifier.
	url := "hookline://schema/" + sanitizeKey(eventType)

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema: add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}

	return compiled, nil
}

// sanitizeKey creates a safe URL path segment from an event type name.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(
		`"`, "",
		`{`, "",
		`}`, "",
		` `, "_",
		`:`, "",
	)
	s := r.Replace(key)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
