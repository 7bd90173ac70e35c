package providers

// CleanSchemaForProvider strips JSON Schema keywords a provider's tool-call
// API rejects or ignores, recursing into "properties" and array "items".
// Unknown/unrecognized providers get the schema back unchanged.
func CleanSchemaForProvider(provider string, schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}

	var drop map[string]bool
	switch provider {
	case "anthropic":
		// Claude's tool-use schema is a JSON Schema subset; "$schema" and
		// "additionalProperties" are meta/validation keywords it ignores
		// but some deployments reject outright.
		drop = map[string]bool{"$schema": true, "additionalProperties": true}
	case "openai", "dashscope":
		drop = map[string]bool{"$schema": true}
	default:
		drop = map[string]bool{}
	}

	return cleanSchemaValue(schema, drop).(map[string]interface{})
}

func cleanSchemaValue(v interface{}, drop map[string]bool) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if drop[k] {
				continue
			}
			out[k] = cleanSchemaValue(child, drop)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = cleanSchemaValue(child, drop)
		}
		return out
	default:
		return v
	}
}

// CleanToolSchemas renders tool definitions into the OpenAI-compatible
// {"type":"function","function":{...}} shape, cleaning each schema for the
// target provider. Used by the OpenAI, DashScope, and Gemini-compat
// request builders, which all share that wire shape.
func CleanToolSchemas(provider string, tools []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  CleanSchemaForProvider(provider, t.Function.Parameters),
			},
		})
	}
	return out
}
