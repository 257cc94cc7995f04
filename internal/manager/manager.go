// Package manager 组合 client / form / listview / export：一个资源页面的完整行为
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trust-console/internal/audit"
	"trust-console/internal/client"
	"trust-console/internal/export"
	"trust-console/internal/form"
	"trust-console/internal/listview"
	"trust-console/internal/notify"
	"trust-console/internal/resource"
	"trust-console/internal/session"

	"go.uber.org/zap"
)

// ErrUnknownResource 目录中没有该资源
var ErrUnknownResource = errors.New("unknown resource")

// Options Registry 依赖
type Options struct {
	Catalog   *resource.Catalog
	BaseURL   string
	Tokens    session.TokenSource
	PageSize  int
	Timeout   time.Duration
	Exporter  *export.Exporter
	Audit     audit.Recorder
	Publisher notify.Publisher
	Logger    *zap.Logger
}

// Registry 按名称打开资源页面
type Registry struct {
	opts Options
}

func NewRegistry(opts Options) *Registry {
	if opts.Catalog == nil {
		opts.Catalog = resource.DefaultCatalog()
	}
	if opts.PageSize < 1 {
		opts.PageSize = listview.DefaultPageSize
	}
	if opts.Exporter == nil {
		opts.Exporter = export.New()
	}
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	if opts.Publisher == nil {
		opts.Publisher = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{opts: opts}
}

// Catalog 资源目录
func (r *Registry) Catalog() *resource.Catalog { return r.opts.Catalog }

// Open 新建一个页面实例。每个实例有自己的列表、表单和客户端，不共享缓存。
func (r *Registry) Open(name string) (*Manager, error) {
	desc, ok := r.opts.Catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	c := r.client(desc)
	return &Manager{
		reg:    r,
		desc:   desc,
		client: c,
		list:   listview.NewController(desc, c, r.opts.PageSize),
		form:   form.NewController(desc, c),
		logger: r.opts.Logger.With(zap.String("resource", desc.Name)),
	}, nil
}

func (r *Registry) client(desc *resource.Descriptor) *client.Client {
	return client.New(desc, r.opts.BaseURL, r.opts.Tokens, r.opts.Timeout, r.opts.Logger)
}

// Manager 一个资源页面
type Manager struct {
	reg    *Registry
	desc   *resource.Descriptor
	client *client.Client
	list   *listview.Controller
	form   *form.Controller
	logger *zap.Logger
}

func (m *Manager) Descriptor() *resource.Descriptor { return m.desc }
func (m *Manager) List() *listview.Controller       { return m.list }
func (m *Manager) Form() *form.Controller           { return m.form }

// Get 单条记录
func (m *Manager) Get(ctx context.Context, id resource.ID) (resource.Record, error) {
	return m.client.Get(ctx, id)
}

// Load 拉取列表（回到第一页）并合并关联数据。失败时列表为空。
func (m *Manager) Load(ctx context.Context) error {
	return m.reload(ctx, true)
}

func (m *Manager) reload(ctx context.Context, resetPage bool) error {
	if err := m.list.Refresh(ctx, resetPage); err != nil {
		return err
	}
	if len(m.desc.Lookups) == 0 {
		return nil
	}
	records := m.list.Records()
	m.resolveLookups(ctx, records)
	m.list.SetRecords(records)
	return nil
}

// resolveLookups 每个被引用资源只拉取一次。关联资源拉取失败时不影响主列表。
func (m *Manager) resolveLookups(ctx context.Context, records []resource.Record) {
	refs := map[string][]resource.Record{}
	for _, lk := range m.desc.Lookups {
		list, ok := refs[lk.Resource]
		if !ok {
			desc, found := m.reg.opts.Catalog.Get(lk.Resource)
			if !found {
				m.logger.Warn("Lookup resource not in catalog", zap.String("lookup", lk.Resource))
				continue
			}
			var err error
			list, err = m.reg.client(desc).List(ctx)
			if err != nil {
				m.logger.Warn("Failed to load lookup resource", zap.String("lookup", lk.Resource), zap.Error(err))
			}
			refs[lk.Resource] = list
		}
		resource.Join(records, list, lk)
	}
}

// Submit 提交表单。成功后重新拉取列表并发布变更事件。
// 保存成功但重新拉取失败时返回已保存的记录和拉取错误。
func (m *Manager) Submit(ctx context.Context) (resource.Record, error) {
	mode := m.form.Mode()
	editingID, _ := m.form.EditingID()

	saved, err := m.form.Submit(ctx)
	if err != nil {
		return nil, err
	}

	action, recordID := notify.ActionCreated, editingID
	if mode == form.ModeEdit {
		action = notify.ActionUpdated
	} else if id, ok := saved.IDOf(m.desc.IDField); ok {
		recordID = id
	}
	m.publish(ctx, action, recordID)
	m.logger.Info("Record saved", zap.String("mode", mode.String()), zap.Int64("record_id", int64(recordID)))

	if err := m.reload(ctx, false); err != nil {
		return saved, err
	}
	return saved, nil
}

// Delete 服务端确认后从本地列表移除，不重新拉取。本地不存在的 id 不发请求。
func (m *Manager) Delete(ctx context.Context, id resource.ID) error {
	if !m.list.Has(id) {
		return nil
	}
	if err := m.list.Remove(ctx, id); err != nil {
		return err
	}
	m.publish(ctx, notify.ActionDeleted, id)
	m.logger.Info("Record deleted", zap.Int64("record_id", int64(id)))
	return nil
}

func (m *Manager) publish(ctx context.Context, action notify.Action, id resource.ID) {
	change := notify.NewChange(m.desc.Name, action, int64(id), m.reg.opts.Exporter.Now())
	if err := m.reg.opts.Publisher.Publish(ctx, change); err != nil {
		m.logger.Warn("Failed to publish change", zap.String("action", string(action)), zap.Error(err))
	}
}

// ExportSpreadsheet 导出当前过滤后的全部记录（不只是当前页）
func (m *Manager) ExportSpreadsheet(ctx context.Context, actor string) (*export.Artifact, error) {
	art, err := m.reg.opts.Exporter.Spreadsheet(m.desc, m.list.Filtered())
	if err != nil {
		return nil, err
	}
	m.recordExport(ctx, art, actor)
	return art, nil
}

// ExportDocument 同上，PDF
func (m *Manager) ExportDocument(ctx context.Context, actor string) (*export.Artifact, error) {
	art, err := m.reg.opts.Exporter.Document(m.desc, m.list.Filtered())
	if err != nil {
		return nil, err
	}
	m.recordExport(ctx, art, actor)
	return art, nil
}

func (m *Manager) recordExport(ctx context.Context, art *export.Artifact, actor string) {
	entry := audit.NewEntry(m.desc.Name, art.Format, art.Filename, art.Rows, actor, m.reg.opts.Exporter.Now())
	if err := m.reg.opts.Audit.Record(ctx, entry); err != nil {
		m.logger.Warn("Failed to record export", zap.String("filename", art.Filename), zap.Error(err))
	}
}

// RecentExports 本资源最近的导出记录。审计后端不支持查询时返回 audit.ErrNoHistory。
func (m *Manager) RecentExports(ctx context.Context, limit int) ([]audit.Entry, error) {
	h, ok := m.reg.opts.Audit.(audit.History)
	if !ok {
		return nil, audit.ErrNoHistory
	}
	return h.Recent(ctx, m.desc.Name, limit)
}

// ImportResult 导入汇总
type ImportResult struct {
	Total   int               `json:"total"`
	Created int               `json:"created"`
	Failed  int               `json:"failed"`
	Errors  []export.RowError `json:"errors"`
}

// Import 逐行校验并新建，最后重新拉取一次列表
func (m *Manager) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	rows, rowErrors, err := m.reg.opts.Exporter.Import(m.desc, data)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{Total: len(rows) + len(rowErrors), Errors: rowErrors}

	for _, row := range rows {
		fc := form.NewController(m.desc, m.client)
		fc.SetFields(row.Record)
		saved, err := fc.Submit(ctx)
		if err != nil {
			rowErr := export.RowError{Row: row.Number, Message: client.UserMessage(err)}
			var ve *form.ValidationError
			if errors.As(err, &ve) {
				rowErr.Message = "validation failed"
				rowErr.Fields = ve.Fields
			}
			res.Errors = append(res.Errors, rowErr)
			continue
		}
		res.Created++
		id, _ := saved.IDOf(m.desc.IDField)
		m.publish(ctx, notify.ActionCreated, id)
	}
	res.Failed = len(res.Errors)
	m.logger.Info("Import finished",
		zap.Int("total", res.Total),
		zap.Int("created", res.Created),
		zap.Int("failed", res.Failed),
	)

	if err := m.reload(ctx, false); err != nil {
		return res, err
	}
	return res, nil
}
