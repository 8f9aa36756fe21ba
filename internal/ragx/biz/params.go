package biz

import "github.com/kart-io/ragx/internal/model"

// 策略参数取值辅助。JSON 反序列化后数字可能是 float64，
// 各 helper 同时接受原生类型。

func stringParam(p model.ParamMap, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func intParam(p model.ParamMap, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatParam(p model.ParamMap, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func boolParam(p model.ParamMap, key string) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}
