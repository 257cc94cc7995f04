package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"trust-console/internal/audit"
	"trust-console/internal/client"
	"trust-console/internal/export"
	"trust-console/internal/form"
	"trust-console/internal/manager"
	"trust-console/internal/models"
	"trust-console/internal/resource"

	"go.uber.org/zap"
)

// RecordsHandler 资源记录的列表、表单提交、删除、导出与导入。
// 每个请求打开一个新的页面实例（manager.Manager），不跨请求缓存记录。
type RecordsHandler struct {
	registry *manager.Registry
	logger   *zap.Logger
}

func NewRecordsHandler(registry *manager.Registry, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{registry: registry, logger: logger}
}

// ActorHeader 导出审计记录的操作人
const ActorHeader = "X-Console-User"

func (h *RecordsHandler) open(w http.ResponseWriter, name string) (*manager.Manager, bool) {
	m, err := h.registry.Open(name)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("unknown resource: %s", name)))
		return nil, false
	}
	return m, true
}

func parseRecordID(w http.ResponseWriter, raw string) (resource.ID, bool) {
	id, ok := resource.ParseID(raw)
	if !ok || id <= 0 {
		writeJSON(w, http.StatusOK, Fail("invalid record id"))
		return 0, false
	}
	return id, true
}

type fieldSummary struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type columnSummary struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

type resourceSummary struct {
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	IDField    string          `json:"id_field"`
	Fields     []fieldSummary  `json:"fields"`
	Searchable []string        `json:"searchable"`
	Columns    []columnSummary `json:"columns"`
}

// ListResources GET /console/api/v1/resources
func (h *RecordsHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	descs := h.registry.Catalog().All()
	out := make([]resourceSummary, 0, len(descs))
	for _, d := range descs {
		required := make(map[string]bool, len(d.Required))
		for _, name := range d.Required {
			required[name] = true
		}
		s := resourceSummary{
			Name:       d.Name,
			Title:      d.Title,
			IDField:    d.IDKey(),
			Fields:     make([]fieldSummary, 0, len(d.Fields)),
			Searchable: d.Searchable,
			Columns:    []columnSummary{},
		}
		for _, f := range d.Fields {
			s.Fields = append(s.Fields, fieldSummary{Name: f.Name, Label: d.Label(f.Name), Required: required[f.Name]})
		}
		for _, c := range d.Columns() {
			s.Columns = append(s.Columns, columnSummary{Field: c.Field, Label: c.Label})
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func recordPage(m *manager.Manager) models.RecordPage {
	v := m.List().View()
	items := make([]map[string]any, 0, len(v.Records))
	for _, rec := range v.Records {
		items = append(items, rec)
	}
	return models.RecordPage{
		Items: items,
		Pagination: models.Pagination{
			Size:       v.PageSize,
			Page:       v.Page,
			Count:      v.Total,
			TotalPages: v.TotalPages,
		},
		Search: v.SearchTerm,
	}
}

// ListRecords GET /console/api/v1/records/{resource}?search=&page=
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request, name string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	q := r.URL.Query()

	err := m.Load(r.Context())
	m.List().SetSearchTerm(strings.TrimSpace(q.Get("search")))
	m.List().GoToPage(parseInt(q.Get("page"), 1))
	if err != nil {
		h.logger.Warn("ListRecords failed", zap.String("resource", name), zap.Error(err))
		writeJSON(w, http.StatusOK, Warn(client.UserMessage(err), recordPage(m)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(recordPage(m)))
}

// GetRecord GET /console/api/v1/records/{resource}/{id}
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request, name, rawID string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	id, ok := parseRecordID(w, rawID)
	if !ok {
		return
	}
	rec, err := m.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(client.UserMessage(err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// CreateRecord POST /console/api/v1/records/{resource}
func (h *RecordsHandler) CreateRecord(w http.ResponseWriter, r *http.Request, name string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	var draft map[string]any
	if err := readBodyJSON(r, maxBodyBytes, &draft); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	m.Form().SetFields(draft)
	h.submit(w, r, m)
}

// UpdateRecord PUT /console/api/v1/records/{resource}/{id}
func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, name, rawID string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	id, ok := parseRecordID(w, rawID)
	if !ok {
		return
	}
	var draft map[string]any
	if err := readBodyJSON(r, maxBodyBytes, &draft); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	rec := resource.Record(draft).Clone()
	rec[m.Descriptor().IDKey()] = int64(id)
	if err := m.Form().BeginEdit(rec); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	h.submit(w, r, m)
}

func (h *RecordsHandler) submit(w http.ResponseWriter, r *http.Request, m *manager.Manager) {
	saved, err := m.Submit(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, Ok(saved))
		return
	}

	var ve *form.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusOK, FailWith("validation failed", map[string]any{"fields": ve.Fields}))
	case saved != nil:
		// 已保存，但重新拉取列表失败
		writeJSON(w, http.StatusOK, Warn("Saved, but the list could not be reloaded", saved))
	default:
		h.logger.Warn("Submit failed", zap.String("resource", m.Descriptor().Name), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(client.UserMessage(err)))
	}
}

// DeleteRecord DELETE /console/api/v1/records/{resource}/{id}
// 先加载列表；本地不存在的 id 直接返回，不发删除请求。
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, name, rawID string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	id, ok := parseRecordID(w, rawID)
	if !ok {
		return
	}
	if err := m.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, Fail(client.UserMessage(err)))
		return
	}
	if !m.List().Has(id) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"id": int64(id), "deleted": false}))
		return
	}
	if err := m.Delete(r.Context(), id); err != nil {
		h.logger.Warn("Delete failed", zap.String("resource", name), zap.Int64("record_id", int64(id)), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(client.UserMessage(err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": int64(id), "deleted": true}))
}

// Export GET /console/api/v1/records/{resource}/export?format=xlsx|pdf&search=
func (h *RecordsHandler) Export(w http.ResponseWriter, r *http.Request, name string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = export.FormatXLSX
	}
	if format != export.FormatXLSX && format != export.FormatPDF {
		writeJSON(w, http.StatusOK, Fail("format must be xlsx or pdf"))
		return
	}

	if err := m.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, Warn(client.UserMessage(err), map[string]any{}))
		return
	}
	m.List().SetSearchTerm(strings.TrimSpace(q.Get("search")))

	actor := r.Header.Get(ActorHeader)
	var art *export.Artifact
	var err error
	if format == export.FormatPDF {
		art, err = m.ExportDocument(r.Context(), actor)
	} else {
		art, err = m.ExportSpreadsheet(r.Context(), actor)
	}
	if errors.Is(err, export.ErrNothingToExport) {
		writeJSON(w, http.StatusOK, Warn("Nothing to export", map[string]any{}))
		return
	}
	if err != nil {
		h.logger.Error("Export failed", zap.String("resource", name), zap.String("format", format), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to export"))
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

// Import POST /console/api/v1/records/{resource}/import (multipart "file")
func (h *RecordsHandler) Import(w http.ResponseWriter, r *http.Request, name string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeJSON(w, http.StatusOK, Fail("failed to parse form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("file not found in request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("failed to read file"))
		return
	}

	res, err := m.Import(r.Context(), data)
	if res == nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to import: %v", err)))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, Warn(client.UserMessage(err), res))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// ExportHistory 最近的导出审计记录（?limit=，默认 20）
func (h *RecordsHandler) ExportHistory(w http.ResponseWriter, r *http.Request, name string) {
	m, ok := h.open(w, name)
	if !ok {
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), audit.DefaultRecentLimit)
	entries, err := m.RecentExports(r.Context(), limit)
	if errors.Is(err, audit.ErrNoHistory) {
		writeJSON(w, http.StatusOK, Warn("Export history is not enabled", []audit.Entry{}))
		return
	}
	if err != nil {
		h.logger.Error("Failed to load export history", zap.String("resource", name), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to load export history"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}
