// Package audit 导出审计：每次生成的导出文件记录一条
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry 一次导出
type Entry struct {
	ID        string    `json:"id"`
	Resource  string    `json:"resource"`
	Format    string    `json:"format"`
	Filename  string    `json:"filename"`
	Rows      int       `json:"rows"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry 填充 ID 和时间
func NewEntry(resource, format, filename string, rows int, actor string, at time.Time) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Resource:  resource,
		Format:    format,
		Filename:  filename,
		Rows:      rows,
		Actor:     actor,
		CreatedAt: at.UTC(),
	}
}

// Recorder 审计写入
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// History 审计查询。Nop 不支持。
type History interface {
	Recent(ctx context.Context, resource string, limit int) ([]Entry, error)
}

// ErrNoHistory 当前审计后端不保存历史（DB_ENABLED=false）
var ErrNoHistory = errors.New("export history not available")

// DefaultRecentLimit Recent 的默认条数
const DefaultRecentLimit = 20

// Nop 不记录
type Nop struct{}

func (Nop) Record(ctx context.Context, e Entry) error { return nil }

// Memory 内存记录（CLI 单次运行与测试）
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

// Entries 已记录条目的拷贝
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Recent 最近的导出记录，按时间倒序
func (m *Memory) Recent(ctx context.Context, resource string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].Resource == resource {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// Schema export_audit 表结构
const Schema = `CREATE TABLE IF NOT EXISTS export_audit (
	id          UUID PRIMARY KEY,
	resource    TEXT NOT NULL,
	format      TEXT NOT NULL,
	filename    TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`

// PostgresRecorder 写入 export_audit
type PostgresRecorder struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresRecorder(db *sql.DB, logger *zap.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: logger}
}

// EnsureSchema 建表（幂等）
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create export_audit: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO export_audit (id, resource, format, filename, row_count, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.Resource, e.Format, e.Filename, e.Rows, e.Actor, e.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to record export",
			zap.String("resource", e.Resource),
			zap.String("filename", e.Filename),
			zap.Error(err),
		)
		return fmt.Errorf("failed to insert export audit: %w", err)
	}
	return nil
}

// Recent 最近的导出记录，按时间倒序
func (r *PostgresRecorder) Recent(ctx context.Context, resource string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	query := `
		SELECT id, resource, format, filename, row_count, actor, created_at
		FROM export_audit
		WHERE resource = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, resource, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query export audit: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Resource, &e.Format, &e.Filename, &e.Rows, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export audit: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
