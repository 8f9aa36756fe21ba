package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ragx/internal/model"
)

func TestMergeParamsDropsUnknownKeys(t *testing.T) {
	defaults := model.ParamMap{"max_tokens": 400, "overlap": 80}
	overrides := model.ParamMap{"max_tokens": 200, "bogus": "x"}

	got := mergeParams(defaults, overrides)

	assert.Equal(t, 200, got["max_tokens"])
	assert.Equal(t, 80, got["overlap"])
	assert.NotContains(t, got, "bogus")
}

func TestMergeParamsRecursesIntoNestedMaps(t *testing.T) {
	defaults := model.ParamMap{
		"layout": model.ParamMap{
			"confidence": 0.4,
			"classes":    []any{"figure"},
		},
		"use_marker": false,
	}
	overrides := model.ParamMap{
		"layout": model.ParamMap{
			"confidence": 0.6,
			"unknown":    true,
		},
	}

	got := mergeParams(defaults, overrides)

	layout, ok := asMap(got["layout"])
	assert.True(t, ok)
	assert.Equal(t, 0.6, layout["confidence"])
	assert.Equal(t, []any{"figure"}, layout["classes"])
	assert.NotContains(t, layout, "unknown")
	assert.Equal(t, false, got["use_marker"])
}

func TestMergeParamsDoesNotMutateDefaults(t *testing.T) {
	defaults := model.ParamMap{
		"nested": model.ParamMap{"a": 1},
	}
	got := mergeParams(defaults, model.ParamMap{"nested": model.ParamMap{"a": 2}})

	nested, _ := asMap(got["nested"])
	assert.Equal(t, 2, nested["a"])
	orig, _ := asMap(defaults["nested"])
	assert.Equal(t, 1, orig["a"])
}

func TestMergeParamsScalarOverMap(t *testing.T) {
	// a scalar override replaces a map default wholesale
	defaults := model.ParamMap{"layout": model.ParamMap{"confidence": 0.4}}
	got := mergeParams(defaults, model.ParamMap{"layout": "off"})
	assert.Equal(t, "off", got["layout"])
}
