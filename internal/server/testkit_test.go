package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"devlink/internal/config"
	"devlink/internal/models"
	"devlink/internal/storage"
	"devlink/internal/testutil"
	"devlink/internal/token"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:           "0",
		WSPort:         "1",
		AccessSecret:   testAccessSecret,
		RefreshSecret:  testRefreshSecret,
		DBDriver:       "sqlite",
		AllowedOrigins: "http://localhost:5173",
		Env:            "test",
		StorageDriver:  "local",
		UploadDir:      t.TempDir(),
		UploadBaseURL:  "/uploads",
		UploadMaxMB:    2,
	}
}

type testEnv struct {
	srv    *Server
	db     *gorm.DB
	cfg    *config.Config
	tokens *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	store, err := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadBaseURL)
	require.NoError(t, err)
	return newTestEnvWithStore(t, cfg, store)
}

func newTestEnvWithStore(t *testing.T, cfg *config.Config, store storage.Storage) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	srv, err := NewServer(cfg, db, nil, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Hub().Shutdown(context.Background()) })

	tokens, err := token.NewService(cfg.AccessSecret, cfg.RefreshSecret)
	require.NoError(t, err)
	return &testEnv{srv: srv, db: db, cfg: cfg, tokens: tokens}
}

// login returns an access token for a fresh user.
func (e *testEnv) login(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user := testutil.CreateUser(t, e.db, username)
	tok, err := e.tokens.IssueAccessToken(user.ID, user.Username)
	require.NoError(t, err)
	return user, tok
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func requireStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		raw, _ := io.ReadAll(resp.Body)
		require.Failf(t, "unexpected status", "want %d, got %d: %s", status, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

// mockStorage is a testify mock of storage.Storage.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Driver() string { return "mock" }
