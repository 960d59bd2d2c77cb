package schema

import (
	"slices"
	"strings"
)

// InputGroup is the raw group an input slot was declared in.
type InputGroup string

const (
	GroupRequired InputGroup = "required"
	GroupOptional InputGroup = "optional"
	GroupHidden   InputGroup = "hidden"
)

// valueWidgetTypes are the primitive types a standalone editor can render.
var valueWidgetTypes = map[string]struct{}{
	"INT":     {},
	"FLOAT":   {},
	"STRING":  {},
	"BOOLEAN": {},
}

// InputSlot is a normalized input port of a node type.
type InputSlot struct {
	Name    string       `json:"name"`
	Group   InputGroup   `json:"group"`
	RawType RawInputType `json:"rawType"`
	// ValueType is the declared type name. It is empty for enumerated slots,
	// which therefore never accept a wired connection.
	ValueType      string         `json:"valueType,omitempty"`
	Options        []string       `json:"options"`
	Config         map[string]any `json:"config"`
	Tooltip        string         `json:"tooltip,omitempty"`
	SupportsWidget bool           `json:"supportsWidget"`
	ForceInput     bool           `json:"forceInput"`
}

// OutputSlot is a normalized output port of a node type.
type OutputSlot struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsList  bool   `json:"isList"`
	Tooltip string `json:"tooltip,omitempty"`
}

// NodeSchema is the normalized definition of one node type. It is never
// mutated after Normalize returns.
type NodeSchema struct {
	Name         string       `json:"name"`
	DisplayName  string       `json:"displayName"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Inputs       []InputSlot  `json:"inputs"`
	Outputs      []OutputSlot `json:"outputs"`
	IsOutputNode bool         `json:"isOutputNode"`
	SearchValue  string       `json:"searchValue"`
	PythonModule string       `json:"pythonModule,omitempty"`
}

// Input returns the named input slot.
func (s *NodeSchema) Input(name string) (*InputSlot, bool) {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i], true
		}
	}
	return nil, false
}

// Output returns the named output slot together with its position, which is
// what the backend uses to address outputs.
func (s *NodeSchema) Output(name string) (int, *OutputSlot, bool) {
	for i := range s.Outputs {
		if s.Outputs[i].Name == name {
			return i, &s.Outputs[i], true
		}
	}
	return -1, nil, false
}

// Map is the schema catalog keyed by node type name.
type Map map[string]*NodeSchema

// Lookup returns the schema for a node type.
func (m Map) Lookup(nodeType string) (*NodeSchema, bool) {
	s, ok := m[nodeType]
	return s, ok && s != nil
}

// Normalize converts the raw /object_info payload into the schema catalog.
// It never fails: missing or malformed fields degrade to empty defaults.
func Normalize(raw RawObjectInfoMap) Map {
	result := make(Map, len(raw))
	for key, node := range raw {
		name := strings.TrimSpace(node.Name)
		if name == "" {
			name = key
		}
		displayName := strings.TrimSpace(node.DisplayName)
		if displayName == "" {
			displayName = name
		}
		description := strings.TrimSpace(node.Description)
		category := strings.TrimSpace(node.Category)

		result[name] = &NodeSchema{
			Name:         name,
			DisplayName:  displayName,
			Description:  description,
			Category:     category,
			Inputs:       normalizeInputs(node),
			Outputs:      normalizeOutputs(node),
			IsOutputNode: node.OutputNode,
			SearchValue:  joinNonEmpty(displayName, name, description, category),
			PythonModule: node.PythonModule,
		}
	}
	return result
}

func normalizeInputs(raw RawObjectInfo) []InputSlot {
	if raw.Input == nil {
		return []InputSlot{}
	}
	var order RawInputOrder
	if raw.InputOrder != nil {
		order = *raw.InputOrder
	}

	inputs := make([]InputSlot, 0, len(raw.Input.Required)+len(raw.Input.Optional)+len(raw.Input.Hidden))
	for _, name := range orderedKeys(raw.Input.Required.Keys(), order.Required) {
		inputs = append(inputs, normalizeInputSlot(name, lookupSlot(raw.Input.Required, name), GroupRequired))
	}
	for _, name := range orderedKeys(raw.Input.Optional.Keys(), order.Optional) {
		inputs = append(inputs, normalizeInputSlot(name, lookupSlot(raw.Input.Optional, name), GroupOptional))
	}
	for _, name := range orderedKeys(raw.Input.Hidden.Keys(), order.Hidden) {
		inputs = append(inputs, normalizeHiddenInput(name, lookupHidden(raw.Input.Hidden, name)))
	}
	return inputs
}

func normalizeInputSlot(name string, raw RawInputSlot, group InputGroup) InputSlot {
	slot := InputSlot{
		Name:    name,
		Group:   group,
		RawType: raw.Type,
		Options: []string{},
		Config:  raw.Config,
	}
	if raw.Type.IsList {
		slot.Options = raw.Type.Options
		slot.SupportsWidget = true
	} else {
		slot.ValueType = raw.Type.Name
		_, slot.SupportsWidget = valueWidgetTypes[raw.Type.Name]
	}
	if tooltip, ok := raw.Config["tooltip"].(string); ok {
		slot.Tooltip = tooltip
	}
	slot.ForceInput = truthy(raw.Config["forceInput"])
	return slot
}

// normalizeHiddenInput builds a hidden slot: always wired, never a constant.
func normalizeHiddenInput(name string, rawType RawInputType) InputSlot {
	slot := InputSlot{
		Name:       name,
		Group:      GroupHidden,
		RawType:    rawType,
		Options:    []string{},
		ForceInput: true,
	}
	if rawType.IsList {
		slot.Options = rawType.Options
	} else {
		slot.ValueType = rawType.Name
	}
	return slot
}

func normalizeOutputs(raw RawObjectInfo) []OutputSlot {
	outputs := make([]OutputSlot, 0, len(raw.Output))
	for i, typ := range raw.Output {
		out := OutputSlot{Name: typ, Type: typ}
		// Only a missing name falls back to the type; "" is kept.
		if i < len(raw.OutputName) && raw.OutputName[i] != nil {
			out.Name = *raw.OutputName[i]
		}
		if i < len(raw.OutputIsList) {
			out.IsList = raw.OutputIsList[i]
		}
		if i < len(raw.OutputTooltips) {
			out.Tooltip = raw.OutputTooltips[i]
		}
		outputs = append(outputs, out)
	}
	return outputs
}

// orderedKeys applies an ordering hint. Keys named by the hint come first in
// hint order; keys the hint does not know keep their natural order after them.
func orderedKeys(keys, order []string) []string {
	if len(order) == 0 {
		return keys
	}
	known := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}
	}
	ordered := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range order {
		if _, ok := known[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	for _, key := range keys {
		if _, ok := seen[key]; !ok {
			ordered = append(ordered, key)
		}
	}
	return ordered
}

func lookupSlot(group RawInputGroup, name string) RawInputSlot {
	idx := slices.IndexFunc(group, func(e RawNamedSlot) bool { return e.Name == name })
	if idx < 0 {
		return RawInputSlot{}
	}
	return group[idx].Slot
}

func lookupHidden(group RawHiddenGroup, name string) RawInputType {
	idx := slices.IndexFunc(group, func(e RawNamedType) bool { return e.Name == name })
	if idx < 0 {
		return RawInputType{}
	}
	return group[idx].Type
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
