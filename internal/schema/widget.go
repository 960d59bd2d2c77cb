package schema

import "slices"

// WidgetKind selects the editor used for a constant input value.
type WidgetKind string

const (
	WidgetString  WidgetKind = "string"
	WidgetNumber  WidgetKind = "number"
	WidgetBoolean WidgetKind = "boolean"
	WidgetSelect  WidgetKind = "select"
)

// WidgetSpec describes the constant editor of an input slot.
type WidgetSpec struct {
	Kind      WidgetKind `json:"kind"`
	Default   any        `json:"defaultValue"`
	Options   []string   `json:"options,omitempty"`
	Multiline bool       `json:"multiline,omitempty"`
}

// WidgetSpecFor returns the widget of a slot, or nil when the slot can only
// be wired.
func WidgetSpecFor(slot *InputSlot) *WidgetSpec {
	if slot == nil || !slot.SupportsWidget || slot.ForceInput {
		return nil
	}

	if len(slot.Options) > 0 {
		return &WidgetSpec{
			Kind:    WidgetSelect,
			Default: resolveSelectDefault(slot),
			Options: slot.Options,
		}
	}

	switch slot.ValueType {
	case "STRING":
		return &WidgetSpec{
			Kind:      WidgetString,
			Default:   resolveStringDefault(slot),
			Multiline: truthy(slot.Config["multiline"]),
		}
	case "INT", "FLOAT":
		return &WidgetSpec{Kind: WidgetNumber, Default: resolveNumberDefault(slot)}
	case "BOOLEAN":
		return &WidgetSpec{Kind: WidgetBoolean, Default: resolveBooleanDefault(slot)}
	default:
		return nil
	}
}

// Defaults computes the initial widget value of every editable input of a
// node type. A nil schema yields an empty map.
func Defaults(s *NodeSchema) map[string]any {
	values := make(map[string]any)
	if s == nil {
		return values
	}
	for i := range s.Inputs {
		if spec := WidgetSpecFor(&s.Inputs[i]); spec != nil {
			values[s.Inputs[i].Name] = spec.Default
		}
	}
	return values
}

func resolveSelectDefault(slot *InputSlot) string {
	if def, ok := slot.Config["default"].(string); ok && slices.Contains(slot.Options, def) {
		return def
	}
	if len(slot.Options) > 0 {
		return slot.Options[0]
	}
	return ""
}

func resolveNumberDefault(slot *InputSlot) float64 {
	if n, ok := toFloat(slot.Config["default"]); ok {
		return n
	}
	return 0
}

func resolveStringDefault(slot *InputSlot) string {
	if def, ok := slot.Config["default"].(string); ok {
		return def
	}
	return ""
}

func resolveBooleanDefault(slot *InputSlot) bool {
	if def, ok := slot.Config["default"].(bool); ok {
		return def
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
