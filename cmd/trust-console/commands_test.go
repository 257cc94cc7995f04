package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trust-console/internal/config"
	"trust-console/internal/resource"
	"trust-console/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("MQTT_ENABLED", "false")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("API_TOKEN", "cli-token")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("EXPORT_DIR", t.TempDir())
	return config.Load()
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResourcesCommand(t *testing.T) {
	out, err := run(t, testConfig(t, "http://unused"), "resources")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "cow-prescriptions")
	assert.Contains(t, out, "templeprofile")
}

func TestExportCommand_WritesFile(t *testing.T) {
	backend := testutil.NewBackend("cli-token")
	defer backend.Close()
	for _, d := range resource.DefaultCatalog().All() {
		backend.Register(d)
	}
	backend.Seed("income",
		resource.Record{"Date": "2024-03-01", "Source": "Hundi", "Amount": float64(1200)},
		resource.Record{"Date": "2024-03-02", "Source": "Donation", "Amount": float64(500)},
	)

	cfg := testConfig(t, backend.URL())
	out, err := run(t, cfg, "export", "income", "--format", "pdf", "--search", "hundi")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 rows, 1 pages)")

	entries, err := os.ReadDir(cfg.ExportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "income_"))
	assert.Equal(t, ".pdf", filepath.Ext(entries[0].Name()))
}

func TestExportCommand_NothingToExport(t *testing.T) {
	backend := testutil.NewBackend("cli-token")
	defer backend.Close()
	for _, d := range resource.DefaultCatalog().All() {
		backend.Register(d)
	}

	out, err := run(t, testConfig(t, backend.URL()), "export", "income")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to export")
}

func TestExportCommand_Errors(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	_, err := run(t, cfg, "export", "elephants")
	assert.ErrorContains(t, err, "unknown resource")

	_, err = run(t, cfg, "export")
	assert.Error(t, err)
}

func TestLoginLogoutCommands(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	out, err := run(t, cfg, "login", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	out, err = run(t, cfg, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestExportsCommand_NeedsDatabase(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	_, err := run(t, cfg, "exports", "income")
	assert.ErrorContains(t, err, "DB_ENABLED=true")

	_, err = run(t, cfg, "exports", "elephants")
	assert.ErrorContains(t, err, "unknown resource")
}
