package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(newHandler(deps{
		store:      memory.New(),
		sessions:   auth.NewSessions(auth.NewJWTManager("test-secret", time.Hour), auth.NewMemoryRevocationList()),
		registry:   prometheus.NewRegistry(),
		origins:    []string{"https://app.example.com"},
		bcryptCost: bcrypt.MinCost,
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)

	code, body := get(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRPCAndMetrics(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	authClient := apiconnect.NewAuthServiceClient(server.Client(), server.URL)
	reg, err := authClient.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Password:    "password123",
	}))
	require.NoError(t, err)
	require.NotEmpty(t, reg.Msg.Token)

	groups := apiconnect.NewGroupServiceClient(server.Client(), server.URL)
	_, err = groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	req := connect.NewRequest(&api.ListGroupsRequest{})
	req.Header().Set("Authorization", "Bearer "+reg.Msg.Token)
	list, err := groups.ListGroups(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Groups)

	code, body := get(t, server.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `splitledger_rpc_requests_total{code="ok",procedure="/splitledger.v1.AuthService/Register"} 1`)
	assert.Contains(t, body, `splitledger_rpc_requests_total{code="unauthenticated",procedure="/splitledger.v1.GroupService/ListGroups"} 1`)
	assert.Contains(t, body, "splitledger_rpc_duration_seconds_bucket")
}

func TestCORS(t *testing.T) {
	server := newTestServer(t)

	for _, tt := range []struct {
		origin string
		want   string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"https://evil.example.com", ""},
	} {
		req, err := http.NewRequest(http.MethodOptions, server.URL+apiconnect.ExpenseServiceCreateExpenseProcedure, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", tt.origin)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"), tt.origin)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
		exposed := resp.Header.Get("Access-Control-Expose-Headers")
		assert.Contains(t, exposed, "Expected-Total")
		assert.Contains(t, exposed, "Actual-Total")
	}
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	dbPath := filepath.Join(dir, "data", "ledger.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"database:\n  path: "+dbPath+"\nauth:\n  jwt_secret: test\nlog:\n  level: error\n",
	), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"migrate", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "schema at version 2", strings.TrimSpace(out.String()))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestMigrateRejectsMemoryDriver(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Database.Driver = config.DriverMemory

	err := migrate(io.Discard, cfg)
	assert.Error(t, err)
}
