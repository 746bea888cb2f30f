package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/hookline/hookline/schema"
)

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func amountSchema() json.RawMessage {
	return mustJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{"type": "number"},
		},
		"required": []any{"amount"},
	})
}

func TestValidateUnregisteredTypePasses(t *testing.T) {
	r := schema.NewRegistry()

	if err := r.Validate("anything.goes", map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRegisteredSchema(t *testing.T) {
	r := schema.NewRegistry()

	if err := r.Register("invoice.created", amountSchema()); err != nil {
		t.Fatal(err)
	}

	if err := r.Validate("invoice.created", map[string]any{"amount": 42.5}); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	if err := r.Validate("invoice.created", map[string]any{"other": "x"}); err == nil {
		t.Error("payload missing required field passed validation")
	}
}

func TestValidateStructPayload(t *testing.T) {
	r := schema.NewRegistry()

	if err := r.Register("invoice.created", amountSchema()); err != nil {
		t.Fatal(err)
	}

	payload := struct {
		Amount float64 `json:"amount"`
	}{Amount: 9.99}

	if err := r.Validate("invoice.created", payload); err != nil {
		t.Errorf("struct payload rejected: %v", err)
	}
}

func TestRegisterInvalidSchema(t *testing.T) {
	r := schema.NewRegistry()

	if err := r.Register("bad.type", json.RawMessage(`{not json`)); err == nil {
		t.Error("expected error for malformed schema document")
	}
}

func TestUnregister(t *testing.T) {
	r := schema.NewRegistry()

	if err := r.Register("invoice.created", amountSchema()); err != nil {
		t.Fatal(err)
	}
	r.Unregister("invoice.created")

	if err := r.Validate("invoice.created", map[string]any{}); err != nil {
		t.Error("unregistered type should pass validation")
	}
}
