// Package patch injects runtime parameters into execution graphs.
//
// Target nodes are found structurally (class tag plus presence of the input
// field) rather than by fixed identifiers. Every exported function works on a
// deep copy and returns it; the input graph is never modified. Nodes that do
// not have the expected shape are skipped, never rejected.
package patch

import (
	"slices"

	"github.com/dukex/ximager/pkg/models"
)

// Node classes recognised by the patcher. Callers may extend them at start-up.
var (
	TextEncoderClasses  = []string{"CLIPTextEncode", "PromptNode", "Text"}
	ImageLoaderClasses  = []string{"LoadImage", "ImageLoader"}
	PrimitiveIntClasses = []string{"PrimitiveInt"}
)

// Input fields written by the patcher.
const (
	TextInput  = "text"
	ImageInput = "image"
	ValueInput = "value"
)

// Apply applies every present field of overrides in one pass.
func Apply(graph models.ExecutionGraph, overrides models.OverrideSet) models.ExecutionGraph {
	patched := graph.Clone()
	if patched == nil {
		return nil
	}

	if overrides.PromptText != nil {
		applyPrompt(patched, *overrides.PromptText)
	}

	if overrides.AssetRefs != nil {
		applyAssetSlots(patched, slotsFromRefs(overrides.AssetRefs))
	}

	if overrides.Dimensions != nil {
		applyDimensions(patched, *overrides.Dimensions)
	}

	return patched
}

// ApplyPrompt writes text into inputs.text of every text-encoder node that has that field.
func ApplyPrompt(graph models.ExecutionGraph, text string) models.ExecutionGraph {
	patched := graph.Clone()
	applyPrompt(patched, text)

	return patched
}

func applyPrompt(graph models.ExecutionGraph, text string) {
	for _, node := range graph {
		if !hasClass(node, TextEncoderClasses) {
			continue
		}

		inputs, ok := models.NodeInputs(node)
		if !ok {
			continue
		}

		if _, ok := inputs[TextInput]; ok {
			inputs[TextInput] = text
		}
	}
}

func hasClass(node any, classes []string) bool {
	class, ok := models.NodeClass(node)

	return ok && slices.Contains(classes, class)
}
