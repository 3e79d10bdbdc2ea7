// Package models defines the documents and records shared by the patcher, the keyword index and the orchestrator.
package models

import "encoding/json"

// Keys of a node document as the engine writes them.
const (
	NodeClassKey  = "class_type"
	NodeInputsKey = "inputs"
	NodeMetaKey   = "_meta"
	NodeTitleKey  = "title"
)

// NodeClass returns the class tag of a node document.
func NodeClass(node any) (string, bool) {
	fields, ok := node.(map[string]any)
	if !ok {
		return "", false
	}

	class, ok := fields[NodeClassKey].(string)

	return class, ok && class != ""
}

// NodeInputs returns the inputs mapping of a node document.
// The returned map aliases the node, writes go through to the graph.
func NodeInputs(node any) (map[string]any, bool) {
	fields, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}

	inputs, ok := fields[NodeInputsKey].(map[string]any)

	return inputs, ok
}

// NodeTitle returns meta.title of a node document.
func NodeTitle(node any) (string, bool) {
	fields, ok := node.(map[string]any)
	if !ok {
		return "", false
	}

	meta, ok := fields[NodeMetaKey].(map[string]any)
	if !ok {
		return "", false
	}

	title, ok := meta[NodeTitleKey].(string)

	return title, ok
}

// HasInput reports whether the node exposes the named input field.
func HasInput(node any, name string) bool {
	inputs, ok := NodeInputs(node)
	if !ok {
		return false
	}

	_, ok = inputs[name]

	return ok
}

// IntValue converts a decoded JSON number into an int.
func IntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}

		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}

		return int(i), true
	default:
		return 0, false
	}
}
