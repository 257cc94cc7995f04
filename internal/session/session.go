// Package session 提供后端请求所需的 bearer token。
//
// token 由调用方显式注入到 client，而不是在每个调用点从全局存储读取。
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trust-console/internal/store"
)

// ErrNoSession 没有可用的 token（未登录或已登出）
var ErrNoSession = errors.New("no session token")

// TokenSource 返回当前 bearer token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static 固定 token（API_TOKEN）
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoSession
	}
	return string(s), nil
}

// KVStore 把 token 保存在固定 key 下：登录时写入，登出时删除。没有刷新机制。
type KVStore struct {
	kv  store.KV
	key string
}

func NewKVStore(kv store.KV, key string) *KVStore {
	return &KVStore{kv: kv, key: key}
}

func (s *KVStore) Token(ctx context.Context) (string, error) {
	v, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	if v == "" {
		return "", ErrNoSession
	}
	return v, nil
}

// Login 保存 token
func (s *KVStore) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := s.kv.Set(ctx, s.key, token, 0); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// Logout 删除 token
func (s *KVStore) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}

type tokenKey struct{}

// WithToken 把本次请求携带的 token 放进 context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// FromContext 取出 WithToken 放入的 token
func FromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}

// ContextSource 优先使用 context 中的 token，否则回退到 Fallback
type ContextSource struct {
	Fallback TokenSource
}

func (s ContextSource) Token(ctx context.Context) (string, error) {
	if t, ok := FromContext(ctx); ok {
		return t, nil
	}
	if s.Fallback == nil {
		return "", ErrNoSession
	}
	return s.Fallback.Token(ctx)
}

// BearerToken 解析 "Authorization: Bearer xxx"
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	t := strings.TrimSpace(header[len(prefix):])
	return t, t != ""
}

// Chain 依次尝试，返回第一个可用的 token。
// 某个来源出错（如 redis 不可达）时继续尝试后面的来源；都不可用时返回第一个非 ErrNoSession 的错误，
// 否则返回 ErrNoSession。
type Chain []TokenSource

func (c Chain) Token(ctx context.Context) (string, error) {
	var firstErr error
	for _, src := range c {
		if src == nil {
			continue
		}
		t, err := src.Token(ctx)
		if err == nil {
			return t, nil
		}
		if firstErr == nil && !errors.Is(err, ErrNoSession) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", firstErr
	}
	return "", ErrNoSession
}
