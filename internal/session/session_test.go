package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"trust-console/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct{}

func (failingKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("connection refused")
}
func (failingKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (failingKV) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = Static(" ").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestKVStore_LoginLogout(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore(store.NewMemoryKV(), "trust-console:session:token")

	_, err := s.Token(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.Error(t, s.Login(ctx, "  "))
	require.NoError(t, s.Login(ctx, " tok-1 "))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	require.NoError(t, s.Logout(ctx))
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestKVStore_BackendErrors(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore(failingKV{}, "k")

	_, err := s.Token(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
	assert.Error(t, s.Login(ctx, "x"))
	assert.Error(t, s.Logout(ctx))
}

func TestContextSource(t *testing.T) {
	src := ContextSource{Fallback: Static("stored")}

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)

	tok, err = src.Token(WithToken(context.Background(), "from-header"))
	require.NoError(t, err)
	assert.Equal(t, "from-header", tok)

	_, err = ContextSource{}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore(store.NewMemoryKV(), "k")
	chain := Chain{kv, Static("fallback")}

	tok, err := chain.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fallback", tok)

	require.NoError(t, kv.Login(ctx, "logged-in"))
	tok, err = chain.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "logged-in", tok)

	_, err = Chain{Static(""), nil}.Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	// redis 不可达时仍然使用 API_TOKEN
	tok, err = Chain{NewKVStore(failingKV{}, "k"), Static("x")}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", tok)

	_, err = Chain{NewKVStore(failingKV{}, "k"), Static("")}.Token(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}
