package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record 一条扁平记录：字段名 -> 原始值（string / number / bool / 日期字符串）
type Record map[string]any

// ID 服务端分配的整数 id
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// DefaultIDField 大部分资源使用 "Id"
const DefaultIDField = "Id"

// ParseID 把 JSON 解码出来的值转换为 ID
func ParseID(v any) (ID, bool) {
	switch x := v.(type) {
	case ID:
		return x, true
	case int:
		return ID(x), true
	case int32:
		return ID(x), true
	case int64:
		return ID(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return ID(int64(x)), true
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return ID(i), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return ID(i), true
	}
	return 0, false
}

// IDOf 读取记录 id。idField 为空时依次尝试 "Id" 和 "id"
func (r Record) IDOf(idField string) (ID, bool) {
	if idField != "" {
		return ParseID(r[idField])
	}
	if id, ok := ParseID(r[DefaultIDField]); ok {
		return id, true
	}
	return ParseID(r["id"])
}

// Clone 浅拷贝（记录只包含原始值）
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without 返回去掉指定字段后的拷贝
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// FormatValue 转成展示/搜索/导出用的字符串，nil 为 ""
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case ID:
		return x.String()
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprint(x)
	}
}

// IsEmpty 必填校验用：nil 和空白字符串视为空
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}
