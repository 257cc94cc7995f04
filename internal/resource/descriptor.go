package resource

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind 字段类型（影响导入时的类型转换和导出单元格类型）
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
	KindBool
)

// Field 表单/表格字段
type Field struct {
	Name  string
	Label string
	Kind  Kind
}

// Rule 字段格式校验，只对非空值生效
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Length  int  // 精确长度，0 表示不限
	Digits  bool // 只允许数字
	Message string
	// CreateOnly 只在新建时校验（编辑时放宽）。必须显式声明。
	CreateOnly bool
}

// Check 返回值是否满足规则
func (r Rule) Check(value string) bool {
	if r.Length > 0 && len([]rune(value)) != r.Length {
		return false
	}
	if r.Digits {
		for _, c := range value {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	if r.Pattern != nil && !r.Pattern.MatchString(value) {
		return false
	}
	return true
}

// Column 导出列：字段 -> 表头
type Column struct {
	Field string
	Label string
	Width float64
}

// Lookup 外键关联：按 Field 的值在 Resource 列表中线性查找 KeyField，
// 把 LabelField 写入 As
type Lookup struct {
	Field      string
	Resource   string
	KeyField   string
	LabelField string
	As         string
}

// Descriptor 资源描述：驱动 client / form / list / export 四个组件
type Descriptor struct {
	Name     string // 路由与文件名使用，如 "employees"
	Title    string
	Endpoint string // 相对 API base URL 的集合路径
	IDField  string
	Envelope string // 列表响应的包装字段，"" 表示直接数组或单个对象

	Fields        []Field
	Required      []string
	Rules         []Rule
	Searchable    []string
	ExportColumns []Column
	Lookups       []Lookup
}

// IDKey 返回 id 字段名
func (d *Descriptor) IDKey() string {
	if d.IDField != "" {
		return d.IDField
	}
	return DefaultIDField
}

// Field 按名称查找字段
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label 字段显示名，未声明时返回字段名
func (d *Descriptor) Label(name string) string {
	if f, ok := d.Field(name); ok && f.Label != "" {
		return f.Label
	}
	return name
}

// Columns 导出列，去掉操作列
func (d *Descriptor) Columns() []Column {
	out := make([]Column, 0, len(d.ExportColumns))
	for _, c := range d.ExportColumns {
		if IsActionColumn(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsActionColumn 操作列（编辑/删除按钮）永远不导出
func IsActionColumn(c Column) bool {
	for _, s := range []string{c.Field, c.Label} {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "action", "actions":
			return true
		}
	}
	return false
}

// Validate 检查描述本身是否一致
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return errors.New("descriptor name is required")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("descriptor %s: endpoint is required", d.Name)
	}

	known := make(map[string]bool, len(d.Fields)+len(d.Lookups))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("descriptor %s: field without name", d.Name)
		}
		if known[f.Name] {
			return fmt.Errorf("descriptor %s: duplicate field %s", d.Name, f.Name)
		}
		known[f.Name] = true
	}
	derived := make(map[string]bool, len(d.Lookups))
	for _, lk := range d.Lookups {
		if !known[lk.Field] {
			return fmt.Errorf("descriptor %s: lookup field %s not declared", d.Name, lk.Field)
		}
		if lk.Resource == "" || lk.LabelField == "" || lk.As == "" {
			return fmt.Errorf("descriptor %s: incomplete lookup on %s", d.Name, lk.Field)
		}
		derived[lk.As] = true
	}

	for _, name := range d.Required {
		if !known[name] {
			return fmt.Errorf("descriptor %s: required field %s not declared", d.Name, name)
		}
	}
	for _, r := range d.Rules {
		if !known[r.Field] {
			return fmt.Errorf("descriptor %s: rule field %s not declared", d.Name, r.Field)
		}
	}
	for _, name := range d.Searchable {
		if !known[name] && !derived[name] {
			return fmt.Errorf("descriptor %s: searchable field %s not declared", d.Name, name)
		}
	}
	for _, c := range d.ExportColumns {
		if IsActionColumn(c) {
			continue
		}
		if c.Field != d.IDKey() && !known[c.Field] && !derived[c.Field] {
			return fmt.Errorf("descriptor %s: export column %s not declared", d.Name, c.Field)
		}
	}
	return nil
}
