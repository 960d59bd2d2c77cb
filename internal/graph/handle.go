package graph

import "strings"

const (
	outputHandlePrefix = "out-"
	inputHandlePrefix  = "in-"
)

// OutputHandle returns the handle id of an output slot.
func OutputHandle(slot string) string { return outputHandlePrefix + slot }

// InputHandle returns the handle id of an input slot.
func InputHandle(slot string) string { return inputHandlePrefix + slot }

// ParseOutputHandle extracts the slot name from an output handle id.
func ParseOutputHandle(handle string) (string, bool) {
	return parseHandle(handle, outputHandlePrefix)
}

// ParseInputHandle extracts the slot name from an input handle id.
func ParseInputHandle(handle string) (string, bool) {
	return parseHandle(handle, inputHandlePrefix)
}

func parseHandle(handle, prefix string) (string, bool) {
	slot, ok := strings.CutPrefix(handle, prefix)
	if !ok || slot == "" {
		return "", false
	}
	return slot, true
}
