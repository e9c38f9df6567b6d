package board

// Spec describes the accepted content fields for one node type. Validation
// drops unknown fields and rejects the whole action when a present field
// fails its check. Required is only enforced for add actions; patches are
// partial by definition.
type Spec map[string]Field

type Field struct {
	Required bool
	Check    func(value any) bool
}

// Partial returns a copy of the spec with every field optional, the patch
// counterpart of an add spec.
func (s Spec) Partial() Spec {
	partial := make(Spec, len(s))
	for name, field := range s {
		field.Required = false
		partial[name] = field
	}
	return partial
}

// Clean validates content against the spec. Unknown fields are dropped,
// type-mismatched fields fail the whole action, and for full validation
// every required field must be present.
func (s Spec) Clean(content map[string]any, partial bool) (map[string]any, bool) {
	cleaned := make(map[string]any, len(content))
	for name, value := range content {
		field, known := s[name]
		if !known {
			continue
		}
		if !field.Check(value) {
			return nil, false
		}
		cleaned[name] = value
	}
	if !partial {
		for name, field := range s {
			if field.Required {
				if _, present := cleaned[name]; !present {
					return nil, false
				}
			}
		}
	}
	return cleaned, true
}

func String(maxLen int) Field {
	return Field{Check: func(value any) bool {
		text, ok := value.(string)
		return ok && (maxLen <= 0 || len(text) <= maxLen)
	}}
}

func Number() Field {
	return Field{Check: func(value any) bool {
		_, ok := value.(float64)
		return ok
	}}
}

func Bool() Field {
	return Field{Check: func(value any) bool {
		_, ok := value.(bool)
		return ok
	}}
}

// Point accepts {x, y} objects with numeric coordinates.
func Point() Field {
	return Field{Check: isPoint}
}

// NullablePoint additionally accepts explicit null, used for cleared
// cursors.
func NullablePoint() Field {
	return Field{Check: func(value any) bool {
		return value == nil || isPoint(value)
	}}
}

// List accepts arrays whose every element passes the element check.
func List(element func(value any) bool) Field {
	return Field{Check: func(value any) bool {
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !element(item) {
				return false
			}
		}
		return true
	}}
}

// Object accepts maps validated field-by-field against the given spec.
func Object(spec Spec) func(value any) bool {
	return func(value any) bool {
		fields, ok := value.(map[string]any)
		if !ok {
			return false
		}
		_, ok = spec.Clean(fields, false)
		return ok
	}
}

func required(field Field) Field {
	field.Required = true
	return field
}

func isPoint(value any) bool {
	point, ok := value.(map[string]any)
	if !ok {
		return false
	}
	_, xok := point["x"].(float64)
	_, yok := point["y"].(float64)
	return xok && yok
}
