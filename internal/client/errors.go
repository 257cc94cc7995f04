package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// 错误分类：调用方用 errors.Is 区分
var (
	ErrFetchFailed  = errors.New("fetch failed")
	ErrSubmitFailed = errors.New("submit failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// RequestError 一次请求的失败详情
type RequestError struct {
	Kind     error // ErrFetchFailed / ErrSubmitFailed / ErrDeleteFailed
	Op       string
	Resource string
	Status   int    // 0 表示没有拿到 HTTP 响应
	Message  string // 后端返回的消息（如有）
	Err      error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Op, e.Resource, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage 给界面展示的提示：优先使用后端消息
func UserMessage(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		switch re.Kind {
		case ErrFetchFailed:
			return "Could not load records. Please try again."
		case ErrSubmitFailed:
			return "Could not save the record. Please try again."
		case ErrDeleteFailed:
			return "Could not delete the record. Please try again."
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// serverMessage 从错误响应体中提取消息
func serverMessage(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		s := strings.TrimSpace(string(body))
		if len(s) > 200 || strings.HasPrefix(s, "<") {
			return ""
		}
		return s
	}
	for _, k := range []string{"message", "msg", "error", "detail"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
