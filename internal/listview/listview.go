// Package listview 列表视图：完整记录集 + 搜索过滤 + 分页。
package listview

import (
	"context"
	"strings"
	"sync"

	"trust-console/internal/resource"

	"golang.org/x/text/cases"
)

// DefaultPageSize 每页条数
const DefaultPageSize = 10

// Store 列表依赖的客户端能力
type Store interface {
	List(ctx context.Context) ([]resource.Record, error)
	Remove(ctx context.Context, id resource.ID) error
}

// View 渲染用快照
type View struct {
	Records    []resource.Record `json:"records"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Total      int               `json:"total"`
	SearchTerm string            `json:"search_term"`
}

// Controller 当前视图持有的记录
type Controller struct {
	desc     *resource.Descriptor
	store    Store
	pageSize int

	mu         sync.RWMutex
	all        []resource.Record
	searchTerm string
	page       int
}

func NewController(desc *resource.Descriptor, store Store, pageSize int) *Controller {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		desc:     desc,
		store:    store,
		pageSize: pageSize,
		all:      []resource.Record{},
		page:     1,
	}
}

// Refresh 重新拉取列表。resetPage 为 true 时回到第一页。
// 失败时列表为空，错误交给调用方提示。
func (c *Controller) Refresh(ctx context.Context, resetPage bool) error {
	records, err := c.store.List(ctx)
	if records == nil {
		records = []resource.Record{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = records
	if resetPage {
		c.page = 1
	}
	c.page = clamp(c.page, 1, c.totalPagesLocked())
	return err
}

// SetRecords 直接替换记录集（例如关联数据已合并后）
func (c *Controller) SetRecords(records []resource.Record) {
	if records == nil {
		records = []resource.Record{}
	}
	c.mu.Lock()
	c.all = records
	c.page = clamp(c.page, 1, c.totalPagesLocked())
	c.mu.Unlock()
}

// SetSearchTerm 更新搜索词并回到第一页
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	c.searchTerm = term
	c.page = 1
	c.mu.Unlock()
}

func (c *Controller) SearchTerm() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.searchTerm
}

// Records 完整记录集
func (c *Controller) Records() []resource.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]resource.Record(nil), c.all...)
}

// Filtered 搜索过滤后的记录，保持原顺序
func (c *Controller) Filtered() []resource.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filteredLocked()
}

func (c *Controller) filteredLocked() []resource.Record {
	if c.searchTerm == "" {
		return append([]resource.Record(nil), c.all...)
	}
	fold := cases.Fold()
	needle := fold.String(c.searchTerm)
	out := make([]resource.Record, 0, len(c.all))
	for _, rec := range c.all {
		if matches(rec, c.desc.Searchable, needle, fold) {
			out = append(out, rec)
		}
	}
	return out
}

// matches 任一可搜索字段包含 needle（大小写不敏感）。缺失或 nil 的字段不匹配。
func matches(rec resource.Record, fields []string, needle string, fold cases.Caser) bool {
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(fold.String(resource.FormatValue(v)), needle) {
			return true
		}
	}
	return false
}

// Page 当前页记录
func (c *Controller) Page() []resource.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return pageOf(c.filteredLocked(), c.page, c.pageSize)
}

func pageOf(filtered []resource.Record, page, size int) []resource.Record {
	start := (page - 1) * size
	if start >= len(filtered) {
		return []resource.Record{}
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end]
}

// TotalPages ceil(len(filtered)/pageSize)，最小为 1
func (c *Controller) TotalPages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalPagesLocked()
}

func (c *Controller) totalPagesLocked() int {
	return totalPages(len(c.filteredLocked()), c.pageSize)
}

func totalPages(n, size int) int {
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func (c *Controller) CurrentPage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

func (c *Controller) PageSize() int { return c.pageSize }

// GoToPage 跳页，n 被限制在 [1, TotalPages]
func (c *Controller) GoToPage(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = clamp(n, 1, c.totalPagesLocked())
	return c.page
}

// View 当前视图快照
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filtered := c.filteredLocked()
	return View{
		Records:    pageOf(filtered, c.page, c.pageSize),
		Page:       c.page,
		PageSize:   c.pageSize,
		TotalPages: totalPages(len(filtered), c.pageSize),
		Total:      len(filtered),
		SearchTerm: c.searchTerm,
	}
}

// Remove 服务端确认删除后，从本地列表移除该 id，不重新拉取。
// 本地已不存在的 id 直接返回 nil，不发请求。
func (c *Controller) Remove(ctx context.Context, id resource.ID) error {
	if !c.contains(id) {
		return nil
	}
	if err := c.store.Remove(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]resource.Record, 0, len(c.all))
	for _, rec := range c.all {
		if rid, ok := rec.IDOf(c.desc.IDField); ok && rid == id {
			continue
		}
		kept = append(kept, rec)
	}
	c.all = kept
	c.page = clamp(c.page, 1, c.totalPagesLocked())
	return nil
}

// Has 本地列表中是否存在该 id
func (c *Controller) Has(id resource.ID) bool { return c.contains(id) }

func (c *Controller) contains(id resource.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.all {
		if rid, ok := rec.IDOf(c.desc.IDField); ok && rid == id {
			return true
		}
	}
	return false
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
