package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawInputType is the declared type of a raw input slot. The backend sends
// either a single type name ("INT", "IMAGE") or a list of enumerated options.
type RawInputType struct {
	Name    string
	Options []string
	// IsList is true when the backend sent an option list, even an empty one.
	IsList bool
}

// UnmarshalJSON accepts a string or an array of strings. Anything else
// decodes to the zero value instead of failing.
func (t *RawInputType) UnmarshalJSON(b []byte) error {
	*t = RawInputType{}
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		t.Name = name
		return nil
	}
	var list []any
	if err := json.Unmarshal(b, &list); err == nil {
		t.IsList = true
		t.Options = make([]string, 0, len(list))
		for _, item := range list {
			t.Options = append(t.Options, fmt.Sprint(item))
		}
	}
	return nil
}

// MarshalJSON writes the type back in the backend's shape.
func (t RawInputType) MarshalJSON() ([]byte, error) {
	if t.IsList {
		if t.Options == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(t.Options)
	}
	return json.Marshal(t.Name)
}

// RawInputSlot is a `[type]` or `[type, config]` tuple.
type RawInputSlot struct {
	Type   RawInputType
	Config map[string]any
}

// UnmarshalJSON decodes the tuple form. A config that is not an object is
// dropped.
func (s *RawInputSlot) UnmarshalJSON(b []byte) error {
	*s = RawInputSlot{}
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		// A bare type without the tuple wrapper is accepted too.
		return s.Type.UnmarshalJSON(b)
	}
	if len(parts) > 0 {
		_ = s.Type.UnmarshalJSON(parts[0])
	}
	if len(parts) > 1 {
		var cfg map[string]any
		if err := json.Unmarshal(parts[1], &cfg); err == nil {
			s.Config = cfg
		}
	}
	return nil
}

// RawNamedSlot is one entry of a required or optional input group.
type RawNamedSlot struct {
	Name string
	Slot RawInputSlot
}

// RawInputGroup keeps the document order of the group's keys.
type RawInputGroup []RawNamedSlot

// UnmarshalJSON decodes an object while preserving key order.
func (g *RawInputGroup) UnmarshalJSON(b []byte) error {
	*g = nil
	return walkObject(b, func(key string, value json.RawMessage) {
		var slot RawInputSlot
		_ = slot.UnmarshalJSON(value)
		*g = append(*g, RawNamedSlot{Name: key, Slot: slot})
	})
}

// Keys returns the group's keys in document order.
func (g RawInputGroup) Keys() []string {
	keys := make([]string, 0, len(g))
	for _, entry := range g {
		keys = append(keys, entry.Name)
	}
	return keys
}

// RawNamedType is one entry of the hidden input group, which carries a bare
// type instead of a tuple.
type RawNamedType struct {
	Name string
	Type RawInputType
}

// RawHiddenGroup keeps the document order of the hidden group's keys.
type RawHiddenGroup []RawNamedType

// UnmarshalJSON decodes an object while preserving key order.
func (g *RawHiddenGroup) UnmarshalJSON(b []byte) error {
	*g = nil
	return walkObject(b, func(key string, value json.RawMessage) {
		// Hidden inputs are sometimes sent in tuple form as well.
		var slot RawInputSlot
		_ = slot.UnmarshalJSON(value)
		*g = append(*g, RawNamedType{Name: key, Type: slot.Type})
	})
}

// Keys returns the group's keys in document order.
func (g RawHiddenGroup) Keys() []string {
	keys := make([]string, 0, len(g))
	for _, entry := range g {
		keys = append(keys, entry.Name)
	}
	return keys
}

// RawInputs holds the three raw input groups.
type RawInputs struct {
	Required RawInputGroup
	Optional RawInputGroup
	Hidden   RawHiddenGroup
}

// RawInputOrder carries the optional explicit ordering hints.
type RawInputOrder struct {
	Required []string
	Optional []string
	Hidden   []string
}

// RawObjectInfo is one node definition exactly as served by /object_info.
type RawObjectInfo struct {
	Input          *RawInputs
	InputOrder     *RawInputOrder
	Output         []string
	OutputIsList   []bool
	// OutputName entries are nil where the payload has no string.
	OutputName     []*string
	OutputTooltips []string
	Name           string
	DisplayName    string
	Description    string
	PythonModule   string
	Category       string
	OutputNode     bool
}

// RawObjectInfoMap is the whole /object_info payload keyed by node type.
type RawObjectInfoMap map[string]RawObjectInfo

// UnmarshalJSON decodes every field independently so a single malformed
// field degrades to its zero value instead of rejecting the definition.
func (r *RawObjectInfo) UnmarshalJSON(b []byte) error {
	*r = RawObjectInfo{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}

	if raw, ok := fields["input"]; ok {
		var groups map[string]json.RawMessage
		if json.Unmarshal(raw, &groups) == nil {
			in := &RawInputs{}
			if g, ok := groups["required"]; ok {
				_ = in.Required.UnmarshalJSON(g)
			}
			if g, ok := groups["optional"]; ok {
				_ = in.Optional.UnmarshalJSON(g)
			}
			if g, ok := groups["hidden"]; ok {
				_ = in.Hidden.UnmarshalJSON(g)
			}
			r.Input = in
		}
	}
	if raw, ok := fields["input_order"]; ok {
		var order map[string]json.RawMessage
		if json.Unmarshal(raw, &order) == nil {
			r.InputOrder = &RawInputOrder{
				Required: looseStrings(order["required"]),
				Optional: looseStrings(order["optional"]),
				Hidden:   looseStrings(order["hidden"]),
			}
		}
	}

	r.Output = looseStrings(fields["output"])
	r.OutputName = looseOptionalStrings(fields["output_name"])
	r.OutputTooltips = looseStrings(fields["output_tooltips"])
	r.OutputIsList = looseBools(fields["output_is_list"])
	r.Name = looseString(fields["name"])
	r.DisplayName = looseString(fields["display_name"])
	r.Description = looseString(fields["description"])
	r.PythonModule = looseString(fields["python_module"])
	r.Category = looseString(fields["category"])
	r.OutputNode = looseBool(fields["output_node"])
	return nil
}

// walkObject calls fn for every key of a JSON object in document order.
func walkObject(b []byte, fn func(key string, value json.RawMessage)) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil
		}
		fn(key, value)
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func looseBool(raw json.RawMessage) bool {
	var v bool
	if raw == nil || json.Unmarshal(raw, &v) != nil {
		return false
	}
	return v
}

// looseStrings decodes an array whose non-string elements become "".
func looseStrings(raw json.RawMessage) []string {
	var items []any
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			out[i] = s
		}
	}
	return out
}

func looseOptionalStrings(raw json.RawMessage) []*string {
	var items []any
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]*string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			out[i] = &s
		}
	}
	return out
}

func looseBools(raw json.RawMessage) []bool {
	var items []any
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]bool, len(items))
	for i, item := range items {
		if v, ok := item.(bool); ok {
			out[i] = v
		}
	}
	return out
}
