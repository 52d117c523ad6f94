package gemini

import "strings"

// supportedSchemaKeys is the subset of JSON Schema the Gemini dialect
// accepts. Everything else is stripped after the structural rewrites below.
var supportedSchemaKeys = map[string]bool{
	"type":        true,
	"format":      true,
	"description": true,
	"nullable":    true,
	"enum":        true,
	"items":       true,
	"properties":  true,
	"required":    true,
	"minimum":     true,
	"maximum":     true,
	"minItems":    true,
	"maxItems":    true,
	"minLength":   true,
	"maxLength":   true,
	"pattern":     true,
	"anyOf":       true,
}

// SanitizeSchema converts a JSON-Schema-like tool parameter object into the
// Gemini schema dialect:
//
//   - $ref targets are resolved against $defs/definitions and inlined, with
//     a visited-ref stack guarding against cycles
//   - allOf members are merged into the parent
//   - anyOf/oneOf unions containing a null member flatten into the non-null
//     variant with nullable set
//   - type arrays like ["string","null"] flatten the same way
//   - type strings are uppercased
//   - exclusiveMinimum/exclusiveMaximum degrade to inclusive bounds
//   - unsupported keys are removed
func SanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	s := &sanitizer{root: schema}
	return s.sanitize(schema)
}

type sanitizer struct {
	root    map[string]any
	visited []string // $ref resolution stack, cycle guard
}

func (s *sanitizer) sanitize(schema map[string]any) map[string]any {
	// Refs inlined here stay on the resolution stack until this subtree is
	// fully sanitized, so self-referential schemas terminate.
	depth := len(s.visited)
	defer func() { s.visited = s.visited[:depth] }()

	for {
		ref, ok := schema["$ref"].(string)
		if !ok {
			break
		}
		if s.onStack(ref) {
			schema = map[string]any{"type": "object"}
			break
		}
		s.visited = append(s.visited, ref)

		target := s.lookupRef(ref)
		if target == nil {
			schema = map[string]any{"type": "object"}
			break
		}

		// Sibling keys of $ref (description etc.) overlay the target.
		merged := make(map[string]any, len(target)+len(schema))
		for k, v := range target {
			merged[k] = v
		}
		for k, v := range schema {
			if k != "$ref" {
				merged[k] = v
			}
		}
		schema = merged
	}

	schema = s.mergeAllOf(schema)

	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}

	s.flattenNullUnion(out, "anyOf")
	s.flattenNullUnion(out, "oneOf")
	s.flattenTypeArray(out)

	if t, ok := out["type"].(string); ok {
		out["type"] = strings.ToUpper(t)
	}

	// Exclusive bounds degrade to inclusive ones.
	if v, ok := out["exclusiveMinimum"]; ok {
		if _, isBool := v.(bool); !isBool {
			out["minimum"] = v
		}
	}
	if v, ok := out["exclusiveMaximum"]; ok {
		if _, isBool := v.(bool); !isBool {
			out["maximum"] = v
		}
	}

	if props, ok := out["properties"].(map[string]any); ok {
		sanitized := make(map[string]any, len(props))
		for name, sub := range props {
			if subSchema, ok := sub.(map[string]any); ok {
				sanitized[name] = s.sanitize(subSchema)
			}
		}
		out["properties"] = sanitized
	}
	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = s.sanitize(items)
	}
	if union, ok := out["anyOf"].([]any); ok {
		sanitized := make([]any, 0, len(union))
		for _, member := range union {
			if m, ok := member.(map[string]any); ok {
				sanitized = append(sanitized, s.sanitize(m))
			}
		}
		out["anyOf"] = sanitized
	}

	for key := range out {
		if !supportedSchemaKeys[key] {
			delete(out, key)
		}
	}
	return out
}

func (s *sanitizer) onStack(ref string) bool {
	for _, seen := range s.visited {
		if seen == ref {
			return true
		}
	}
	return false
}

// resolveRef follows a $ref chain without touching the resolution stack.
// Used for allOf members, whose inlined contents are re-checked against the
// stack when the merged schema's children are sanitized. Chain loops and
// unresolvable refs degrade to a bare object schema.
func (s *sanitizer) resolveRef(schema map[string]any) map[string]any {
	seen := map[string]bool{}
	for {
		ref, ok := schema["$ref"].(string)
		if !ok {
			return schema
		}
		if seen[ref] {
			return map[string]any{"type": "object"}
		}
		seen[ref] = true

		target := s.lookupRef(ref)
		if target == nil {
			return map[string]any{"type": "object"}
		}

		merged := make(map[string]any, len(target)+len(schema))
		for k, v := range target {
			merged[k] = v
		}
		for k, v := range schema {
			if k != "$ref" {
				merged[k] = v
			}
		}
		schema = merged
	}
}

func (s *sanitizer) lookupRef(ref string) map[string]any {
	name := ref
	for _, prefix := range []string{"#/$defs/", "#/definitions/"} {
		if strings.HasPrefix(ref, prefix) {
			name = strings.TrimPrefix(ref, prefix)
			break
		}
	}
	for _, defsKey := range []string{"$defs", "definitions"} {
		if defs, ok := s.root[defsKey].(map[string]any); ok {
			if target, ok := defs[name].(map[string]any); ok {
				return target
			}
		}
	}
	return nil
}

// mergeAllOf folds allOf members into the parent schema. Parent keys win on
// conflict; properties and required merge element-wise.
func (s *sanitizer) mergeAllOf(schema map[string]any) map[string]any {
	members, ok := schema["allOf"].([]any)
	if !ok {
		return schema
	}

	merged := map[string]any{}
	for _, member := range members {
		m, ok := member.(map[string]any)
		if !ok {
			continue
		}
		mergeSchema(merged, s.resolveRef(m))
	}
	parent := make(map[string]any, len(schema))
	for k, v := range schema {
		if k != "allOf" {
			parent[k] = v
		}
	}
	mergeSchema(merged, parent)
	return merged
}

func mergeSchema(dst, src map[string]any) {
	for k, v := range src {
		switch k {
		case "properties":
			existing, _ := dst["properties"].(map[string]any)
			incoming, _ := v.(map[string]any)
			if existing == nil {
				dst[k] = v
				continue
			}
			for name, sub := range incoming {
				existing[name] = sub
			}
		case "required":
			existing, _ := dst["required"].([]any)
			incoming, _ := v.([]any)
			dst[k] = append(existing, incoming...)
		default:
			dst[k] = v
		}
	}
}

// flattenNullUnion rewrites {anyOf: [X, {type:"null"}]} as X with
// nullable:true.
func (s *sanitizer) flattenNullUnion(schema map[string]any, key string) {
	union, ok := schema[key].([]any)
	if !ok {
		return
	}

	var nonNull []any
	sawNull := false
	for _, member := range union {
		m, ok := member.(map[string]any)
		if ok {
			if t, _ := m["type"].(string); t == "null" {
				sawNull = true
				continue
			}
		}
		nonNull = append(nonNull, member)
	}

	if !sawNull {
		if key == "oneOf" {
			// The dialect has no oneOf; degrade to anyOf.
			delete(schema, "oneOf")
			schema["anyOf"] = union
		}
		return
	}

	delete(schema, key)
	schema["nullable"] = true
	switch len(nonNull) {
	case 0:
	case 1:
		if m, ok := nonNull[0].(map[string]any); ok {
			for k, v := range s.sanitize(m) {
				if _, exists := schema[k]; !exists {
					schema[k] = v
				}
			}
		}
	default:
		schema["anyOf"] = nonNull
	}
}

// flattenTypeArray rewrites type:["string","null"] as type:"string" with
// nullable:true.
func (s *sanitizer) flattenTypeArray(schema map[string]any) {
	types, ok := schema["type"].([]any)
	if !ok {
		return
	}
	var kept string
	for _, t := range types {
		name, _ := t.(string)
		if name == "null" {
			schema["nullable"] = true
			continue
		}
		if kept == "" {
			kept = name
		}
	}
	if kept == "" {
		delete(schema, "type")
		return
	}
	schema["type"] = kept
}
