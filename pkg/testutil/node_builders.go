// Package testutil provides test data builders and utilities for testing.
package testutil

import "github.com/dukex/ximager/pkg/models"

// CreateTestNode creates a node document with default values that can be overridden.
func CreateTestNode(class string, overrides ...func(map[string]any)) map[string]any {
	node := map[string]any{
		"class_type": class,
		"inputs":     map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithInput sets one input field.
func WithInput(name string, value any) func(map[string]any) {
	return func(n map[string]any) {
		inputs, ok := n["inputs"].(map[string]any)
		if !ok {
			inputs = map[string]any{}
			n["inputs"] = inputs
		}

		inputs[name] = value
	}
}

// WithTitle sets meta.title.
func WithTitle(title string) func(map[string]any) {
	return func(n map[string]any) {
		n["_meta"] = map[string]any{"title": title}
	}
}

// WithoutInputs removes the inputs field.
func WithoutInputs() func(map[string]any) {
	return func(n map[string]any) {
		delete(n, "inputs")
	}
}

// TextEncoder creates a CLIPTextEncode node with a text input.
func TextEncoder(text string) map[string]any {
	return CreateTestNode("CLIPTextEncode", WithInput("text", text), WithInput("clip", []any{"4", 1.0}))
}

// ImageLoader creates a LoadImage node with an image input.
func ImageLoader(image string) map[string]any {
	return CreateTestNode("LoadImage", WithInput("image", image), WithInput("upload", "image"))
}

// Primitive creates a PrimitiveInt node with a title and value.
func Primitive(title string, value any) map[string]any {
	return CreateTestNode("PrimitiveInt", WithInput("value", value), WithTitle(title))
}

// CreateTestGraph builds a small text-to-image graph: one encoder, two loaders, Width and Height.
func CreateTestGraph() models.ExecutionGraph {
	return models.ExecutionGraph{
		"6":  TextEncoder("a placeholder prompt"),
		"10": ImageLoader("first.png"),
		"2":  ImageLoader("second.png"),
		"20": Primitive("Width", 512.0),
		"21": Primitive("Height", 512.0),
		"3": CreateTestNode("KSampler",
			WithInput("seed", 42.0),
			WithInput("steps", 20.0),
		),
	}
}
