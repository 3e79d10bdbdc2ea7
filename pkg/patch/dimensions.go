package patch

import "github.com/dukex/ximager/pkg/models"

// Titles of the primitive nodes that carry the output size.
const (
	WidthTitle  = "Width"
	HeightTitle = "Height"
)

// DefaultDimension is reported when a graph has no readable size node.
const DefaultDimension = 512

// ApplyDimensions writes the present width/height overrides into inputs.value of the
// primitive-integer nodes titled "Width" and "Height".
func ApplyDimensions(graph models.ExecutionGraph, dims models.Dimensions) models.ExecutionGraph {
	patched := graph.Clone()
	applyDimensions(patched, dims)

	return patched
}

func applyDimensions(graph models.ExecutionGraph, dims models.Dimensions) {
	for _, node := range graph {
		if !hasClass(node, PrimitiveIntClasses) {
			continue
		}

		title, ok := models.NodeTitle(node)
		if !ok {
			continue
		}

		var value *int

		switch title {
		case WidthTitle:
			value = dims.Width
		case HeightTitle:
			value = dims.Height
		}

		if value == nil {
			continue
		}

		fields, _ := node.(map[string]any)

		inputs, ok := models.NodeInputs(node)
		if !ok {
			if raw, present := fields[models.NodeInputsKey]; present && raw != nil {
				// inputs exists but is not an object; leave it alone
				continue
			}

			inputs = map[string]any{}
			fields[models.NodeInputsKey] = inputs
		}

		inputs[ValueInput] = *value
	}
}

// ExtractDimensions reads the current width and height, defaulting each to 512.
func ExtractDimensions(graph models.ExecutionGraph) (width, height int) {
	width, height = DefaultDimension, DefaultDimension

	for _, node := range graph {
		if !hasClass(node, PrimitiveIntClasses) {
			continue
		}

		title, ok := models.NodeTitle(node)
		if !ok {
			continue
		}

		inputs, ok := models.NodeInputs(node)
		if !ok {
			continue
		}

		value, ok := models.IntValue(inputs[ValueInput])
		if !ok {
			continue
		}

		switch title {
		case WidthTitle:
			width = value
		case HeightTitle:
			height = value
		}
	}

	return width, height
}
