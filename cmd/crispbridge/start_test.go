package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/crispbridge/internal/api"
	"github.com/mattjoyce/crispbridge/internal/config"
	"github.com/mattjoyce/crispbridge/internal/events"
	"github.com/mattjoyce/crispbridge/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Crisp.PluginID = "plug-1"
	cfg.Crisp.TokenID = "tid"
	cfg.Crisp.TokenKey = "tkey"
	cfg.Crisp.SigningSecret = "whsec"
	cfg.Ops.APIKey = "ops-key"
	return cfg
}

func healthz(t *testing.T, a *app) (int, api.HealthzResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var resp api.HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr.Code, resp
}

func TestNewApp_MemoryOnly(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.memory, "no redis url means an in-process token cache")
	assert.Nil(t, a.journal)

	code, resp := healthz(t, a)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Checks)

	// Journal endpoint is not mounted without a journal.
	req := httptest.NewRequest(http.MethodGet, "/ops/webhooks", nil)
	req.Header.Set("Authorization", "Bearer ops-key")
	rr := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewApp_WithRedisAndJournal(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.memory)
	require.NotNil(t, a.journal)

	code, resp := healthz(t, a)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"redis": "ok", "journal": "ok"}, resp.Checks)

	_, err = newApp(context.Background(), cfg)
	require.Error(t, err, "second instance must not open a locked journal")
	assert.Contains(t, err.Error(), "locked")
}

func TestNewApp_InvalidWebhookConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.Webhook.MaxBodySize = "lots"

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)

	// Resources from the failed attempt were released.
	lk, err := storage.AcquireLock(storage.LockPath(cfg.Journal.Path))
	require.NoError(t, err)
	_ = lk.Release()
}

func TestPruneJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.Journal.Retention = time.Hour

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	old := events.Event{ID: 1, UUID: "old", Type: "crisp.webhook.received", At: time.Now().Add(-2 * time.Hour), Data: json.RawMessage(`{}`)}
	fresh := events.Event{ID: 2, UUID: "fresh", Type: "crisp.webhook.received", At: time.Now(), Data: json.RawMessage(`{}`)}
	require.NoError(t, a.journal.Emit(ctx, old))
	require.NoError(t, a.journal.Emit(ctx, fresh))

	pruneCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		a.pruneJournal(pruneCtx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		entries, err := a.journal.Recent(ctx, 10)
		return err == nil && len(entries) == 1 && entries[0].UUID == "fresh"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestJournalList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	path := writeTestConfig(t, "journal:\n  path: "+dbPath+"\n")

	j, err := storage.OpenJournal(context.Background(), dbPath)
	require.NoError(t, err)
	hub := events.NewHub(4)
	require.NoError(t, j.Emit(context.Background(), hub.Publish("crisp.webhook.received", map[string]string{"website_id": "site-9"})))
	require.NoError(t, j.Close())

	code, stdout, _ := runCLIForTest(t, "journal", "list", "--config", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "site-9")
	assert.True(t, strings.HasPrefix(stdout, "AT"), stdout)

	code, stdout, _ = runCLIForTest(t, "journal", "list", "--config", path, "--json", "--limit", "5")
	require.Equal(t, 0, code)
	var entries []storage.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "site-9", entries[0].WebsiteID)

	disabled := writeTestConfig(t, "")
	code, _, stderr := runCLIForTest(t, "journal", "list", "--config", disabled)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "disabled")
}
