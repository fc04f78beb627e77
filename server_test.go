package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"luacrypt/store"
)

const testPassword = "f8jvB=3t6pWsHD*5TXWr22stHwak9T"

type testServer struct {
	server  *Server
	handler http.Handler
	db      *gorm.DB
}

// newTestServer builds a server over a fresh sqlite file. mutate may
// adjust the config before the server is built.
func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	config := defaultConfig()
	config.Auth.Password = testPassword
	config.SeedWelcome = false
	config.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	if mutate != nil {
		mutate(config)
	}

	db, sqlDB, err := store.Open(config.Database.Driver, config.Database.DSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.Nop()
	if err := dbInit(context.Background(), db, logger, config); err != nil {
		t.Fatalf("db init: %v", err)
	}

	server, err := NewServer(config, db, sqlDB, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	return &testServer{server: server, handler: server.Router(), db: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createScript(t *testing.T, name, content string) store.Script {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/scripts", map[string]string{"name": name, "content": content}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create script: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var s store.Script
	decodeBody(t, w, &s)
	return s
}

func (ts *testServer) listLogs(t *testing.T) []store.AccessLog {
	t.Helper()

	w := ts.do(t, http.MethodGet, "/api/logs", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list logs: expected 200, got %d", w.Code)
	}

	var logs []store.AccessLog
	decodeBody(t, w, &logs)
	return logs
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectMessage(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	var body messageResponse
	decodeBody(t, w, &body)
	if body.Message != message {
		t.Fatalf("expected message %q, got %q", message, body.Message)
	}
}
