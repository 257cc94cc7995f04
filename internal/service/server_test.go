package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServer_StopIsNotAnError(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServer_StartReportsListenError(t *testing.T) {
	srv := NewServer("invalid-address", http.NotFoundHandler(), zap.NewNop())
	assert.Error(t, srv.Start())
}
