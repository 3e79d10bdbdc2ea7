package patch

import (
	"slices"
	"strings"

	"github.com/dukex/ximager/pkg/models"
)

// ApplyAssets assigns refs[i] to the i-th image-loader node in slot order.
// Extra refs are ignored; nodes past len(refs) are left untouched.
func ApplyAssets(graph models.ExecutionGraph, refs []string) models.ExecutionGraph {
	patched := graph.Clone()
	applyAssetSlots(patched, slotsFromRefs(refs))

	return patched
}

// ApplyAssetSlots assigns each slot's ref to the node at that position in slot order.
// Slots missing from the map, or beyond the number of loader nodes, change nothing.
func ApplyAssetSlots(graph models.ExecutionGraph, refs map[int]string) models.ExecutionGraph {
	patched := graph.Clone()
	applyAssetSlots(patched, refs)

	return patched
}

// ApplyAssetToAll writes the same ref into every image-loader node.
// This is the single-image form older workflows were authored against.
func ApplyAssetToAll(graph models.ExecutionGraph, ref string) models.ExecutionGraph {
	patched := graph.Clone()

	for _, id := range AssetSlots(patched) {
		inputs, _ := models.NodeInputs(patched[id])
		inputs[ImageInput] = ref
	}

	return patched
}

// AssetSlots returns the identifiers of the image-loader nodes exposing inputs.image,
// in slot order.
func AssetSlots(graph models.ExecutionGraph) []string {
	ids := make([]string, 0)

	for id, node := range graph {
		if !hasClass(node, ImageLoaderClasses) || !models.HasInput(node, ImageInput) {
			continue
		}

		ids = append(ids, id)
	}

	slices.SortFunc(ids, CompareNodeIDs)

	return ids
}

// CountAssetSlots counts the nodes whose class is an image-loader class.
// Zero is a valid answer; see SlotCount for the value a form should collect.
func CountAssetSlots(graph models.ExecutionGraph) int {
	count := 0

	for _, node := range graph {
		if hasClass(node, ImageLoaderClasses) {
			count++
		}
	}

	return count
}

// SlotCount is the number of asset slots to offer for graph.
// A graph without loader nodes still gets one implicit slot.
func SlotCount(graph models.ExecutionGraph) int {
	return max(1, CountAssetSlots(graph))
}

// CompareNodeIDs orders node identifiers: numeric identifiers first, by value,
// then everything else lexicographically.
func CompareNodeIDs(a, b string) int {
	aNum, bNum := isNumeric(a), isNumeric(b)

	switch {
	case aNum && bNum:
		return compareNumeric(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func applyAssetSlots(graph models.ExecutionGraph, refs map[int]string) {
	if len(refs) == 0 {
		return
	}

	for slot, id := range AssetSlots(graph) {
		ref, ok := refs[slot]
		if !ok {
			continue
		}

		inputs, _ := models.NodeInputs(graph[id])
		inputs[ImageInput] = ref
	}
}

func slotsFromRefs(refs []string) map[int]string {
	slots := make(map[int]string, len(refs))
	for i, ref := range refs {
		slots[i] = ref
	}

	return slots
}

func isNumeric(id string) bool {
	if id == "" {
		return false
	}

	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// compareNumeric compares digit strings by value without overflowing.
func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")

	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}

		return 1
	}

	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}

	// Same value ("7" and "007"): keep the order total.
	return strings.Compare(a, b)
}
