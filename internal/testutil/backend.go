// Package testutil 测试用的内存 REST 后端
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"trust-console/internal/resource"
)

// Backend 约定式 REST 资源：GET/POST /<ep>，GET/PUT/DELETE /<ep>/{id}
type Backend struct {
	Server *httptest.Server
	// Token 非空时要求 Authorization: Bearer <Token>
	Token string

	mu        sync.Mutex
	envelopes map[string]string
	idFields  map[string]string
	data      map[string]map[int64]resource.Record
	nextID    map[string]int64
	failures  map[string]int
	calls     map[string]int
}

// NewBackend 启动后端，调用方负责 Close
func NewBackend(token string) *Backend {
	b := &Backend{
		Token:     token,
		envelopes: map[string]string{},
		idFields:  map[string]string{},
		data:      map[string]map[int64]resource.Record{},
		nextID:    map[string]int64{},
		failures:  map[string]int{},
		calls:     map[string]int{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *Backend) Close() { b.Server.Close() }

// URL API base URL
func (b *Backend) URL() string { return b.Server.URL + "/api" }

// Register 声明资源的包装字段与 id 字段
func (b *Backend) Register(desc *resource.Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes[desc.Endpoint] = desc.Envelope
	b.idFields[desc.Endpoint] = desc.IDKey()
	if b.data[desc.Endpoint] == nil {
		b.data[desc.Endpoint] = map[int64]resource.Record{}
	}
}

// Seed 预置记录，返回分配的 id
func (b *Backend) Seed(endpoint string, records ...resource.Record) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, b.insertLocked(endpoint, r.Clone()))
	}
	return ids
}

// Records 当前服务端记录（按 id 排序）
func (b *Backend) Records(endpoint string) []resource.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listLocked(endpoint)
}

// FailNext 让下一次 method 请求返回 status
func (b *Backend) FailNext(method, endpoint string, status int) {
	b.mu.Lock()
	b.failures[method+" "+endpoint] = status
	b.mu.Unlock()
}

// Calls method + endpoint 的请求次数
func (b *Backend) Calls(method, endpoint string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+endpoint]
}

func (b *Backend) insertLocked(endpoint string, r resource.Record) int64 {
	if b.data[endpoint] == nil {
		b.data[endpoint] = map[int64]resource.Record{}
	}
	b.nextID[endpoint]++
	id := b.nextID[endpoint]
	r[b.idFieldLocked(endpoint)] = float64(id)
	b.data[endpoint][id] = r
	return id
}

func (b *Backend) idFieldLocked(endpoint string) string {
	if f := b.idFields[endpoint]; f != "" {
		return f
	}
	return resource.DefaultIDField
}

func (b *Backend) listLocked(endpoint string) []resource.Record {
	ids := make([]int64, 0, len(b.data[endpoint]))
	for id := range b.data[endpoint] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]resource.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.data[endpoint][id].Clone())
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/")
	parts := strings.Split(path, "/")
	endpoint := parts[0]

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[r.Method+" "+endpoint]++

	if b.Token != "" && r.Header.Get("Authorization") != "Bearer "+b.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
		return
	}
	if status, ok := b.failures[r.Method+" "+endpoint]; ok {
		delete(b.failures, r.Method+" "+endpoint)
		writeJSON(w, status, map[string]any{"message": "backend failure"})
		return
	}
	if _, ok := b.data[endpoint]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "unknown resource"})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			list := b.listLocked(endpoint)
			if env := b.envelopes[endpoint]; env != "" {
				writeJSON(w, http.StatusOK, map[string]any{env: list})
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var rec resource.Record
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
				return
			}
			id := b.insertLocked(endpoint, rec)
			writeJSON(w, http.StatusCreated, b.data[endpoint][id])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid id"})
		return
	}
	existing, ok := b.data[endpoint][id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPut:
		var rec resource.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
			return
		}
		rec[b.idFieldLocked(endpoint)] = float64(id)
		b.data[endpoint][id] = rec
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		delete(b.data[endpoint], id)
		writeJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
