package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espasatel/espasatel/internal/config"
	"github.com/espasatel/espasatel/internal/lead"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)
	c.Relay.TelegramToken = "123:abc"
	c.Relay.ChatID = "-100"
	return c
}

func TestBuildHandler_RelaysLead(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer tg.Close()

	c := testConfig(t)
	c.Relay.BaseURL = tg.URL

	h, err := buildHandler(c)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/send-telegram", strings.NewReader(`{"name":"Иван","phone":"+7 999"}`))
	req.Header.Set("Origin", "https://еспасатель.рф")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100", gotBody["chat_id"])
	assert.Equal(t, "Markdown", gotBody["parse_mode"])
}

func TestBuildHandler_RelayDownGivesFallback(t *testing.T) {
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer tg.Close()

	c := testConfig(t)
	c.Relay.BaseURL = tg.URL

	h, err := buildHandler(c)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/send-telegram", strings.NewReader(`{"name":"Иван","phone":"+7 999"}`))
	req.Header.Set("Origin", "https://еспасатель.рф")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, lead.RelayFailedText, body["error"])
	assert.Equal(t, c.Relay.FallbackPhone, body["fallback_phone"])
}

func TestLoadComponents_ExternalTables(t *testing.T) {
	c := testConfig(t)

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
providers:
  - name: Тест
    logo: T
    rating: 4.5
    payout_rate: 90
    markup: 1.1
    prices:
      gap: {base: 1000}
`), 0644))
	c.Catalog.Path = catalogPath

	comps, err := loadComponents(c)
	require.NoError(t, err)
	offers := comps.catalog.ComputeOffers("gap", "")
	require.Len(t, offers, 1)
	assert.Equal(t, 1100, offers[0].Price)

	c.Advisor.Path = filepath.Join(dir, "missing.yaml")
	_, err = loadComponents(c)
	assert.Error(t, err)
}

func TestLoadComponents_Cookies(t *testing.T) {
	c := testConfig(t)
	c.LiteMode.AutoMaxAgeSecs = 60
	c.LiteMode.PrefMaxAgeDays = 1

	comps, err := loadComponents(c)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, comps.cookies.AutoMaxAge)
	assert.Equal(t, 24*time.Hour, comps.cookies.PrefMaxAge)
}

func TestRunServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	readyCalled := make(chan struct{})
	go func() { done <- runServer(ctx, srv, time.Second, func() { close(readyCalled) }) }()

	select {
	case <-readyCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("ready not called")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	called := false
	err = runServer(context.Background(), srv, time.Second, func() { called = true })
	assert.False(t, called)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server listen")
}

func TestBuildHandler_AlertsWhenCircuitOpens(t *testing.T) {
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer tg.Close()

	alerts := make(chan map[string]any, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		alerts <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	c := testConfig(t)
	c.Relay.BaseURL = tg.URL
	c.Circuit.FailureThreshold = 1
	c.Monitoring.WebhookURL = hook.URL

	h, err := buildHandler(c)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/send-telegram", strings.NewReader(`{"name":"Иван","phone":"+7 999"}`))
	req.Header.Set("Origin", "https://еспасатель.рф")
	h.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case body := <-alerts:
		assert.Equal(t, "relay_circuit_open", body["type"])
		assert.Equal(t, "high", body["severity"])
	case <-time.After(3 * time.Second):
		t.Fatal("no alert delivered")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeWithin_ReadyInTime(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveWithin(ctx, 5*time.Second, time.Second, func() (*http.Server, error) {
			return &http.Server{Addr: addr, Handler: http.NotFoundHandler()}, nil
		})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeWithin_StartupBudgetExceeded(t *testing.T) {
	addr := freeAddr(t)
	err := serveWithin(context.Background(), 20*time.Millisecond, time.Second, func() (*http.Server, error) {
		time.Sleep(200 * time.Millisecond)
		return &http.Server{Addr: addr, Handler: http.NotFoundHandler()}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not listening within")
}

func TestServeWithin_BuildError(t *testing.T) {
	err := serveWithin(context.Background(), time.Second, time.Second, func() (*http.Server, error) {
		return nil, errors.New("bad catalog")
	})
	assert.EqualError(t, err, "bad catalog")
}
