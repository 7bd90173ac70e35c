package providers

import "testing"

func TestCleanSchemaForProvider_Anthropic_DropsMetaKeywords(t *testing.T) {
	schema := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string"},
		},
	}

	got := CleanSchemaForProvider("anthropic", schema)

	if _, ok := got["$schema"]; ok {
		t.Error("CleanSchemaForProvider(anthropic) kept $schema, want it dropped")
	}
	if _, ok := got["additionalProperties"]; ok {
		t.Error("CleanSchemaForProvider(anthropic) kept additionalProperties, want it dropped")
	}
	if got["type"] != "object" {
		t.Errorf("type = %v, want object", got["type"])
	}
	props, ok := got["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties = %v, want a map", got["properties"])
	}
	if _, ok := props["path"]; !ok {
		t.Error("properties.path dropped, want it preserved")
	}
}

func TestCleanSchemaForProvider_OpenAI_OnlyDropsSchemaKey(t *testing.T) {
	schema := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
	}

	got := CleanSchemaForProvider("openai", schema)
	if _, ok := got["$schema"]; ok {
		t.Error("CleanSchemaForProvider(openai) kept $schema, want it dropped")
	}
	if _, ok := got["additionalProperties"]; !ok {
		t.Error("CleanSchemaForProvider(openai) dropped additionalProperties, want it preserved")
	}
}

func TestCleanSchemaForProvider_NestedArrayItems(t *testing.T) {
	schema := map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"$schema": "drop-me",
			"type":    "string",
		},
	}

	got := CleanSchemaForProvider("anthropic", schema)
	items, ok := got["items"].(map[string]interface{})
	if !ok {
		t.Fatalf("items = %v, want a map", got["items"])
	}
	if _, ok := items["$schema"]; ok {
		t.Error("nested items.$schema not dropped")
	}
	if items["type"] != "string" {
		t.Errorf("items.type = %v, want string", items["type"])
	}
}

func TestCleanSchemaForProvider_Nil(t *testing.T) {
	if got := CleanSchemaForProvider("anthropic", nil); got != nil {
		t.Errorf("CleanSchemaForProvider(nil) = %v, want nil", got)
	}
}

func TestCleanToolSchemas(t *testing.T) {
	tools := []ToolDefinition{
		{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:        "read_file",
				Description: "Reads a file",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
				},
			},
		},
	}

	got := CleanToolSchemas("openai", tools)
	if len(got) != 1 {
		t.Fatalf("CleanToolSchemas() returned %d entries, want 1", len(got))
	}
	if got[0]["type"] != "function" {
		t.Errorf("tool type = %v, want function", got[0]["type"])
	}
	fn, ok := got[0]["function"].(map[string]interface{})
	if !ok {
		t.Fatalf("function = %v, want a map", got[0]["function"])
	}
	if fn["name"] != "read_file" || fn["description"] != "Reads a file" {
		t.Errorf("function = %+v, want name=read_file description=\"Reads a file\"", fn)
	}
}
