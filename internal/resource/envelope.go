package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Unwrap 按资源声明的 envelope 规则把响应体归一化为记录列表：
//   - 直接数组: [...]
//   - 对象中 envelope 字段包含数组或单个对象: {"employees": [...]}
//   - 单个对象: {...}，包装为一条
//
// 空 body 或 null 返回空列表。
func Unwrap(body []byte, envelope string) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []Record{}, nil
	}

	switch body[0] {
	case '[':
		var items []Record
		if err := json.Unmarshal(body, &items); err != nil {
			return []Record{}, fmt.Errorf("failed to decode list payload: %w", err)
		}
		out := make([]Record, 0, len(items))
		for _, it := range items {
			if it != nil {
				out = append(out, it)
			}
		}
		return out, nil
	case '{':
		if envelope != "" {
			var wrapper map[string]json.RawMessage
			if err := json.Unmarshal(body, &wrapper); err != nil {
				return []Record{}, fmt.Errorf("failed to decode envelope: %w", err)
			}
			if inner, ok := wrapper[envelope]; ok {
				return Unwrap(inner, "")
			}
		}
		var one Record
		if err := json.Unmarshal(body, &one); err != nil {
			return []Record{}, fmt.Errorf("failed to decode object payload: %w", err)
		}
		return []Record{one}, nil
	}
	return []Record{}, fmt.Errorf("unexpected payload: %.32s", body)
}
