package httpapi

import (
	"net/http"
	"strings"

	"trust-console/internal/session"

	"go.uber.org/zap"
)

const (
	recordsPrefix = "/console/api/v1/records/"
	sessionPrefix = "/console/api/v1/session/"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// ServeHTTP 请求带 Authorization: Bearer 时，本次请求优先使用该 token
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if token, ok := session.BearerToken(req.Header.Get("Authorization")); ok {
		req = req.WithContext(session.WithToken(req.Context(), token))
	}
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes /healthz
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}

// RegisterRecordRoutes 资源目录 + 记录 CRUD + 导出/导入
func (r *Router) RegisterRecordRoutes(h *RecordsHandler) {
	r.Handle("/console/api/v1/resources", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListResources(w, req)
	})

	// records/{resource}[/{id}|/export|/exports|/import]
	r.Handle(recordsPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(req.URL.Path, recordsPrefix), "/")
		parts := strings.Split(rest, "/")
		if rest == "" || len(parts) > 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		name := parts[0]

		if len(parts) == 1 {
			switch req.Method {
			case http.MethodGet:
				h.ListRecords(w, req, name)
			case http.MethodPost:
				h.CreateRecord(w, req, name)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		}

		switch sub := parts[1]; {
		case sub == "export":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Export(w, req, name)
		case sub == "exports":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.ExportHistory(w, req, name)
		case sub == "import":
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Import(w, req, name)
		default:
			switch req.Method {
			case http.MethodGet:
				h.GetRecord(w, req, name, sub)
			case http.MethodPut:
				h.UpdateRecord(w, req, name, sub)
			case http.MethodDelete:
				h.DeleteRecord(w, req, name, sub)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}
	})
}

// RegisterSessionRoutes 登录/登出（保存或清除 bearer token）
func (r *Router) RegisterSessionRoutes(h *SessionHandler) {
	r.Handle(sessionPrefix+"login", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Login(w, req)
	})
	r.Handle(sessionPrefix+"logout", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Logout(w, req)
	})
}
