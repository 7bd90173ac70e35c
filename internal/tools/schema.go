package tools

import "fmt"

// validate recursively checks args against a JSON-schema-lite object
// shape: type, enum, minLength, minimum, maximum, nested object
// "required"/"properties", and array "items" type. Unknown fields in args
// are ignored; unknown schema keywords are ignored.
func validate(schema map[string]interface{}, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	required, _ := schema["required"].([]interface{})
	for _, r := range required {
		name, _ := r.(string)
		if name == "" {
			continue
		}
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required field %q", name)
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for name, raw := range args {
		propSchema, ok := props[name].(map[string]interface{})
		if !ok {
			continue // unknown fields are ignored
		}
		if err := validateValue(name, propSchema, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(field string, schema map[string]interface{}, value interface{}) error {
	if typ, ok := schema["type"].(string); ok {
		if err := checkType(field, typ, value); err != nil {
			return err
		}
	}

	if enumRaw, ok := schema["enum"].([]interface{}); ok && len(enumRaw) > 0 {
		matched := false
		for _, e := range enumRaw {
			if fmt.Sprint(e) == fmt.Sprint(value) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("field %q must be one of %v", field, enumRaw)
		}
	}

	if s, ok := value.(string); ok {
		if minLen, ok := numberOf(schema["minLength"]); ok && float64(len(s)) < minLen {
			return fmt.Errorf("field %q must have length >= %v", field, minLen)
		}
	}

	if n, ok := numberOf(value); ok {
		if min, ok := numberOf(schema["minimum"]); ok && n < min {
			return fmt.Errorf("field %q must be >= %v", field, min)
		}
		if max, ok := numberOf(schema["maximum"]); ok && n > max {
			return fmt.Errorf("field %q must be <= %v", field, max)
		}
	}

	if typ, _ := schema["type"].(string); typ == "object" {
		nested, _ := value.(map[string]interface{})
		if err := validate(schema, nested); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}

	if typ, _ := schema["type"].(string); typ == "array" {
		items, _ := schema["items"].(map[string]interface{})
		arr, _ := value.([]interface{})
		if items != nil {
			for i, item := range arr {
				if err := validateValue(fmt.Sprintf("%s[%d]", field, i), items, item); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func checkType(field, typ string, value interface{}) error {
	ok := true
	switch typ {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = numberOf(value)
	case "integer":
		n, isNum := numberOf(value)
		ok = isNum && n == float64(int64(n))
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]interface{})
	case "object":
		_, ok = value.(map[string]interface{})
	default:
		return nil // unknown type keyword: ignore
	}
	if !ok {
		return fmt.Errorf("field %q must be of type %s", field, typ)
	}
	return nil
}

func numberOf(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
