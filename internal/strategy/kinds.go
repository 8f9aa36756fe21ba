// Package strategy manages the catalog of pipeline strategies and the
// templates composed from them.
package strategy

import (
	"sort"

	"github.com/kart-io/ragx/internal/model"
)

// KindInfo describes one known strategy code: the kind it belongs to and
// the parameter keys it accepts with their defaults. The defaults double as
// the override schema; template overrides outside these keys are dropped.
type KindInfo struct {
	Code     string
	TypeName string
	Defaults model.ParamMap
}

// kindTable is the compile-time registry of strategy codes. Unknown codes
// can still be stored by admins, but pipeline assembly only accepts codes
// listed here.
var kindTable = map[string]KindInfo{
	"EXT_TXT":  {Code: "EXT_TXT", TypeName: model.TypeExtraction, Defaults: model.ParamMap{"encoding": "utf-8"}},
	"EXT_MD":   {Code: "EXT_MD", TypeName: model.TypeExtraction, Defaults: model.ParamMap{"encoding": "utf-8"}},
	"EXT_CSV":  {Code: "EXT_CSV", TypeName: model.TypeExtraction, Defaults: model.ParamMap{"delimiter": ",", "has_header": true}},
	"EXT_DOCX": {Code: "EXT_DOCX", TypeName: model.TypeExtraction, Defaults: model.ParamMap{}},
	"EXT_PPTX": {Code: "EXT_PPTX", TypeName: model.TypeExtraction, Defaults: model.ParamMap{}},
	"EXT_PDF": {Code: "EXT_PDF", TypeName: model.TypeExtraction, Defaults: model.ParamMap{
		"use_marker": false,
		"use_layout": false,
		"layout": model.ParamMap{
			"confidence": 0.4,
		},
	}},

	"CHK_FIXED": {Code: "CHK_FIXED", TypeName: model.TypeChunking, Defaults: model.ParamMap{
		"max_tokens": 400,
		"overlap":    80,
		"model_name": "multilingual-e5-large",
	}},
	"CHK_MD": {Code: "CHK_MD", TypeName: model.TypeChunking, Defaults: model.ParamMap{
		"soft_target":          350,
		"hard_limit":           520,
		"overlap":              60,
		"start_new_on_heading": true,
		"materialize_assets":   false,
		"model_name":           "multilingual-e5-large",
	}},

	"EMB_DENSE": {Code: "EMB_DENSE", TypeName: model.TypeEmbeddingDense, Defaults: model.ParamMap{
		"model_name": "multilingual-e5-large",
		"dimension":  1024,
		"provider":   "openai",
	}},
	"EMB_SPARSE": {Code: "EMB_SPARSE", TypeName: model.TypeEmbeddingSparse, Defaults: model.ParamMap{
		"dimension": 1 << 20,
	}},

	"TRF_NONE": {Code: "TRF_NONE", TypeName: model.TypeTransformation, Defaults: model.ParamMap{}},
	"TRF_HYDE": {Code: "TRF_HYDE", TypeName: model.TypeTransformation, Defaults: model.ParamMap{
		"model":       "",
		"max_tokens":  256,
		"temperature": 0.3,
	}},

	"RTR_VECTOR": {Code: "RTR_VECTOR", TypeName: model.TypeRetrieval, Defaults: model.ParamMap{
		"type":      "semantic",
		"top_k":     10,
		"threshold": 0.0,
		"weight":    0.7,
		"required":  false,
	}},

	"RRK_CROSS": {Code: "RRK_CROSS", TypeName: model.TypeReranking, Defaults: model.ParamMap{
		"top_k":        5,
		"blend_weight": 0.5,
		"model":        "",
	}},
	"RRK_NONE": {Code: "RRK_NONE", TypeName: model.TypeReranking, Defaults: model.ParamMap{
		"top_k": 5,
	}},

	"PRM_SYS": {Code: "PRM_SYS", TypeName: model.TypeSystemPrompting, Defaults: model.ParamMap{
		"template": "",
	}},
	"PRM_USER": {Code: "PRM_USER", TypeName: model.TypeUserPrompting, Defaults: model.ParamMap{
		"template": "",
	}},

	"GEN_OPENAI": {Code: "GEN_OPENAI", TypeName: model.TypeGeneration, Defaults: model.ParamMap{
		"model":       "gpt-4o-mini",
		"base_url":    "https://api.openai.com/v1",
		"temperature": 0.2,
		"max_tokens":  1024,
		"timeout":     60,
		"max_retries": 2,
	}},
	"GEN_OLLAMA": {Code: "GEN_OLLAMA", TypeName: model.TypeGeneration, Defaults: model.ParamMap{
		"model":       "qwen2.5",
		"base_url":    "http://localhost:11434",
		"temperature": 0.2,
		"max_tokens":  1024,
		"timeout":     120,
		"max_retries": 2,
	}},
}

// LookupKind returns the kind info for a known strategy code.
func LookupKind(code string) (KindInfo, bool) {
	info, ok := kindTable[code]
	return info, ok
}

// KnownCodes lists every registered strategy code, sorted.
func KnownCodes() []string {
	out := make([]string, 0, len(kindTable))
	for code := range kindTable {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// CodesForType lists the registered codes of one kind, sorted.
func CodesForType(typeName string) []string {
	var out []string
	for code, info := range kindTable {
		if info.TypeName == typeName {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}
