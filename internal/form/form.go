// Package form 表单状态：草稿、字段错误、新建/编辑模式。
package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trust-console/internal/resource"
)

// Mode 新建或编辑
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

var (
	ErrValidationFailed = errors.New("validation failed")
	// ErrSubmitInFlight 上一次提交尚未返回
	ErrSubmitInFlight = errors.New("submission already in flight")
)

// ValidationError 字段 -> 错误信息
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Store 表单提交依赖的客户端能力
type Store interface {
	Create(ctx context.Context, draft resource.Record) (resource.Record, error)
	Update(ctx context.Context, id resource.ID, record resource.Record) error
}

// Controller 一个资源表单
type Controller struct {
	desc  *resource.Descriptor
	store Store

	mu          sync.Mutex
	draft       resource.Record
	fieldErrors map[string]string
	mode        Mode
	editingID   resource.ID
	inFlight    bool
}

func NewController(desc *resource.Descriptor, store Store) *Controller {
	return &Controller{
		desc:        desc,
		store:       store,
		draft:       resource.Record{},
		fieldErrors: map[string]string{},
	}
}

// SetField 覆盖一个字段，不立即校验
func (c *Controller) SetField(name string, value any) {
	c.mu.Lock()
	c.draft[name] = value
	c.mu.Unlock()
}

// SetFields 批量设置
func (c *Controller) SetFields(values map[string]any) {
	c.mu.Lock()
	for k, v := range values {
		c.draft[k] = v
	}
	c.mu.Unlock()
}

// Draft 草稿拷贝
func (c *Controller) Draft() resource.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// EditingID 仅编辑模式下存在
func (c *Controller) EditingID() (resource.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID, c.mode == ModeEdit
}

// FieldErrors 上一次校验的结果拷贝
func (c *Controller) FieldErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyErrors(c.fieldErrors)
}

// InFlight 提交是否进行中（界面据此禁用提交按钮）
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Validate 必填 + 格式校验，结果同时保存在 FieldErrors
func (c *Controller) Validate() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldErrors = c.validateLocked()
	return copyErrors(c.fieldErrors)
}

func (c *Controller) validateLocked() map[string]string {
	errs := map[string]string{}
	for _, name := range c.desc.Required {
		if resource.IsEmpty(c.draft[name]) {
			errs[name] = c.desc.Label(name) + " is required"
		}
	}
	for _, rule := range c.desc.Rules {
		if _, failed := errs[rule.Field]; failed {
			continue
		}
		if rule.CreateOnly && c.mode == ModeEdit {
			continue
		}
		v := c.draft[rule.Field]
		if resource.IsEmpty(v) {
			continue
		}
		if !rule.Check(strings.TrimSpace(resource.FormatValue(v))) {
			msg := rule.Message
			if msg == "" {
				msg = c.desc.Label(rule.Field) + " is invalid"
			}
			errs[rule.Field] = msg
		}
	}
	return errs
}

// Submit 校验通过后按模式调用 Create 或 Update。
// 成功后重置表单；失败时保留草稿。
func (c *Controller) Submit(ctx context.Context) (resource.Record, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	c.fieldErrors = c.validateLocked()
	if len(c.fieldErrors) > 0 {
		errs := copyErrors(c.fieldErrors)
		c.mu.Unlock()
		return nil, &ValidationError{Fields: errs}
	}
	c.inFlight = true
	mode, id := c.mode, c.editingID
	draft := c.draft.Clone()
	c.mu.Unlock()

	var saved resource.Record
	var err error
	if mode == ModeEdit {
		body := draft.Clone()
		body[c.desc.IDKey()] = int64(id)
		if err = c.store.Update(ctx, id, body); err == nil {
			saved = body
		}
	} else {
		saved, err = c.store.Create(ctx, draft)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return nil, err
	}
	c.resetLocked()
	return saved, nil
}

// BeginEdit 载入已有记录进入编辑模式
func (c *Controller) BeginEdit(record resource.Record) error {
	id, ok := record.IDOf(c.desc.IDField)
	if !ok {
		return fmt.Errorf("record has no %s", c.desc.IDKey())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// 关联标签（Lookup.As）只用于展示，不回写后端
	drop := []string{c.desc.IDKey()}
	for _, lk := range c.desc.Lookups {
		drop = append(drop, lk.As)
	}
	c.draft = record.Without(drop...)
	c.mode = ModeEdit
	c.editingID = id
	c.fieldErrors = map[string]string{}
	return nil
}

// CancelEdit 回到新建模式并清空草稿
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Controller) resetLocked() {
	c.draft = resource.Record{}
	c.mode = ModeCreate
	c.editingID = 0
	c.fieldErrors = map[string]string{}
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
