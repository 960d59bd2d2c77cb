package schema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ksamplerJSON = `{
  "KSampler": {
    "input": {
      "required": {
        "model": ["MODEL"],
        "seed": ["INT", {"default": 0, "min": 0, "control_after_generate": true}],
        "sampler_name": [["euler", "dpmpp_2m"], {"tooltip": "Sampling algorithm"}],
        "latent_image": ["LATENT"],
        "cfg": ["FLOAT", {"default": 8.0}]
      },
      "optional": {
        "note": ["STRING", {"multiline": true}],
        "mask": ["MASK"]
      },
      "hidden": {
        "prompt": "PROMPT",
        "unique_id": "UNIQUE_ID"
      }
    },
    "input_order": {
      "required": ["model", "seed", "cfg", "sampler_name"]
    },
    "output": ["LATENT"],
    "output_is_list": [false],
    "output_name": ["LATENT"],
    "name": "KSampler",
    "display_name": "KSampler",
    "description": "Denoises a latent",
    "category": "sampling",
    "python_module": "nodes",
    "output_node": false
  }
}`

func decodeRaw(t *testing.T, payload string) RawObjectInfoMap {
	t.Helper()
	var raw RawObjectInfoMap
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	return raw
}

func inputNames(s *NodeSchema) []string {
	names := make([]string, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		names = append(names, in.Name)
	}
	return names
}

func TestNormalize_InputOrdering(t *testing.T) {
	schemas := Normalize(decodeRaw(t, ksamplerJSON))
	ks, ok := schemas.Lookup("KSampler")
	require.True(t, ok)

	// Hinted keys first, then the unknown-to-the-hint key, then optional and
	// hidden groups in document order.
	want := []string{"model", "seed", "cfg", "sampler_name", "latent_image", "note", "mask", "prompt", "unique_id"}
	if diff := cmp.Diff(want, inputNames(ks)); diff != "" {
		t.Errorf("input order mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_SlotResolution(t *testing.T) {
	ks := Normalize(decodeRaw(t, ksamplerJSON))["KSampler"]

	seed, ok := ks.Input("seed")
	require.True(t, ok)
	assert.Equal(t, GroupRequired, seed.Group)
	assert.Equal(t, "INT", seed.ValueType)
	assert.True(t, seed.SupportsWidget)
	assert.False(t, seed.ForceInput)
	assert.Empty(t, seed.Options)

	sampler, _ := ks.Input("sampler_name")
	assert.Empty(t, sampler.ValueType, "enumerated slots have no value type")
	assert.Equal(t, []string{"euler", "dpmpp_2m"}, sampler.Options)
	assert.True(t, sampler.SupportsWidget)
	assert.Equal(t, "Sampling algorithm", sampler.Tooltip)

	model, _ := ks.Input("model")
	assert.Equal(t, "MODEL", model.ValueType)
	assert.False(t, model.SupportsWidget)
	assert.Nil(t, model.Config)

	mask, _ := ks.Input("mask")
	assert.Equal(t, GroupOptional, mask.Group)

	hidden, _ := ks.Input("prompt")
	assert.Equal(t, GroupHidden, hidden.Group)
	assert.Equal(t, "PROMPT", hidden.ValueType)
	assert.False(t, hidden.SupportsWidget)
	assert.True(t, hidden.ForceInput)
}

func TestNormalize_HiddenSlotsNeverWidgets(t *testing.T) {
	raw := decodeRaw(t, `{"N": {"input": {"hidden": {"seed": "INT", "choice": [["a","b"]]}}}}`)
	n := Normalize(raw)["N"]
	for _, in := range n.Inputs {
		assert.False(t, in.SupportsWidget, in.Name)
		assert.True(t, in.ForceInput, in.Name)
	}
	choice, _ := n.Input("choice")
	assert.Equal(t, []string{"a", "b"}, choice.Options)
}

func TestNormalize_Outputs(t *testing.T) {
	raw := decodeRaw(t, `{"Split": {
		"output": ["IMAGE", "MASK", "INT", "STRING"],
		"output_name": ["image", null, 7, ""],
		"output_is_list": [true],
		"output_tooltips": ["the image"]
	}}`)
	got := Normalize(raw)["Split"].Outputs
	want := []OutputSlot{
		{Name: "image", Type: "IMAGE", IsList: true, Tooltip: "the image"},
		{Name: "MASK", Type: "MASK"},
		{Name: "INT", Type: "INT"},
		{Name: "", Type: "STRING"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}

	idx, slot, ok := Normalize(raw)["Split"].Output("INT")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "INT", slot.Type)
}

func TestNormalize_NamesAndSearchValue(t *testing.T) {
	raw := decodeRaw(t, `{
		"catalog_key": {"display_name": "  ", "category": "loaders"},
		"Other": {"name": " Renamed ", "display_name": "Pretty", "description": "desc"}
	}`)
	schemas := Normalize(raw)

	fallback, ok := schemas.Lookup("catalog_key")
	require.True(t, ok)
	assert.Equal(t, "catalog_key", fallback.DisplayName)
	assert.Equal(t, "catalog_key catalog_key loaders", fallback.SearchValue)
	assert.Empty(t, fallback.Inputs)
	assert.Empty(t, fallback.Outputs)

	renamed, ok := schemas.Lookup("Renamed")
	require.True(t, ok, "schemas are keyed by the resolved name")
	assert.Equal(t, "Pretty Renamed desc", renamed.SearchValue)
	_, ok = schemas.Lookup("Other")
	assert.False(t, ok)
}

func TestNormalize_MalformedFieldsDegrade(t *testing.T) {
	raw := decodeRaw(t, `{
		"Broken": {
			"input": {"required": {"a": 5, "b": ["INT", "not-a-config"]}, "optional": "nope"},
			"output": "IMAGE",
			"output_node": "yes",
			"category": 12
		},
		"NotAnObject": 42
	}`)
	schemas := Normalize(raw)

	broken := schemas["Broken"]
	require.NotNil(t, broken)
	assert.Empty(t, broken.Outputs)
	assert.False(t, broken.IsOutputNode)
	assert.Empty(t, broken.Category)
	require.Len(t, broken.Inputs, 2)
	b, _ := broken.Input("b")
	assert.Equal(t, "INT", b.ValueType)
	assert.Nil(t, b.Config)

	other, ok := schemas.Lookup("NotAnObject")
	require.True(t, ok)
	assert.Equal(t, "NotAnObject", other.Name)
}

func TestBuildCatalog_SortedByDisplayName(t *testing.T) {
	schemas := Map{
		"b": {Name: "b", DisplayName: "beta"},
		"a": {Name: "a", DisplayName: "Alpha"},
		"c": {Name: "c", DisplayName: "alpha"},
	}
	entries := BuildCatalog(schemas)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

func TestOrderedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, orderedKeys([]string{"a", "b"}, nil))
	assert.Equal(t, []string{"b", "a", "c"}, orderedKeys([]string{"a", "b", "c"}, []string{"b", "x", "a", "b"}))
}
