package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

const (
	whoamiProcedure = "/test.v1.TestService/Whoami"
	publicProcedure = "/test.v1.TestService/Public"
	failProcedure   = "/test.v1.TestService/Fail"
)

type whoamiRequest struct{}

type whoamiResponse struct {
	UserID string `json:"user_id"`
}

func whoami(ctx context.Context, _ *connect.Request[whoamiRequest]) (*connect.Response[whoamiResponse], error) {
	return connect.NewResponse(&whoamiResponse{UserID: GetUserID(ctx)}), nil
}

func fail(context.Context, *connect.Request[whoamiRequest]) (*connect.Response[whoamiResponse], error) {
	return nil, connect.NewError(connect.CodeInternal, errors.New("boom"))
}

type testEnv struct {
	server   *httptest.Server
	sessions *auth.Sessions
	metrics  *Metrics
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		sessions: auth.NewSessions(auth.NewJWTManager("test-secret", time.Hour), auth.NewMemoryRevocationList()),
		registry: prometheus.NewRegistry(),
		logs:     &bytes.Buffer{},
	}
	env.metrics = NewMetrics(env.registry)
	logger := slog.New(slog.NewTextHandler(env.logs, nil))

	opts := connect.WithHandlerOptions(
		connect.WithCodec(apiconnect.Codec{}),
		connect.WithInterceptors(
			env.metrics.Interceptor(),
			LoggingInterceptor(logger),
			RequireAuth(env.sessions, publicProcedure),
		),
	)

	mux := http.NewServeMux()
	mux.Handle(whoamiProcedure, connect.NewUnaryHandler(whoamiProcedure, whoami, opts))
	mux.Handle(publicProcedure, connect.NewUnaryHandler(publicProcedure, whoami, opts))
	mux.Handle(failProcedure, connect.NewUnaryHandler(failProcedure, fail, opts))

	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) call(procedure, token string) (*whoamiResponse, error) {
	client := connect.NewClient[whoamiRequest, whoamiResponse](
		e.server.Client(), e.server.URL+procedure, connect.WithCodec(apiconnect.Codec{}),
	)
	req := connect.NewRequest(&whoamiRequest{})
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestRequireAuth(t *testing.T) {
	env := setupTestServer(t)
	user := models.NewUser("alice@example.com", "Alice", "hash")

	token, err := env.sessions.Issue(user)
	require.NoError(t, err)

	resp, err := env.call(whoamiProcedure, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.UserID)

	_, err = env.call(whoamiProcedure, "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = env.call(whoamiProcedure, "garbage")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	resp, err = env.call(publicProcedure, "")
	require.NoError(t, err)
	assert.Empty(t, resp.UserID)
}

func TestRequireAuthRevokedToken(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	token, err := env.sessions.Issue(models.NewUser("alice@example.com", "Alice", "hash"))
	require.NoError(t, err)
	claims, err := env.sessions.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, env.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

	_, err = env.call(whoamiProcedure, token)
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestOptionalAuth(t *testing.T) {
	sessions := auth.NewSessions(auth.NewJWTManager("test-secret", time.Hour), auth.NewMemoryRevocationList())
	user := models.NewUser("alice@example.com", "Alice", "hash")
	token, err := sessions.Issue(user)
	require.NoError(t, err)

	opts := connect.WithHandlerOptions(
		connect.WithCodec(apiconnect.Codec{}),
		connect.WithInterceptors(OptionalAuth(sessions)),
	)
	server := httptest.NewServer(connect.NewUnaryHandler(whoamiProcedure, whoami, opts))
	t.Cleanup(server.Close)

	client := connect.NewClient[whoamiRequest, whoamiResponse](
		server.Client(), server.URL+whoamiProcedure, connect.WithCodec(apiconnect.Codec{}),
	)

	for _, tt := range []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"bad token", "Bearer garbage", ""},
		{"valid token", "Bearer " + token, user.ID},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&whoamiRequest{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}
			resp, err := client.CallUnary(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Msg.UserID)
		})
	}
}

func TestMetricsInterceptor(t *testing.T) {
	env := setupTestServer(t)

	token, err := env.sessions.Issue(models.NewUser("alice@example.com", "Alice", "hash"))
	require.NoError(t, err)

	_, err = env.call(whoamiProcedure, token)
	require.NoError(t, err)
	_, err = env.call(whoamiProcedure, "")
	require.Error(t, err)
	_, err = env.call(failProcedure, token)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.requests.WithLabelValues(whoamiProcedure, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.requests.WithLabelValues(whoamiProcedure, "unauthenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.requests.WithLabelValues(failProcedure, "internal")))
	assert.Equal(t, 2, testutil.CollectAndCount(env.metrics.duration))
}

func TestLoggingInterceptor(t *testing.T) {
	env := setupTestServer(t)
	user := models.NewUser("alice@example.com", "Alice", "hash")

	token, err := env.sessions.Issue(user)
	require.NoError(t, err)

	_, err = env.call(whoamiProcedure, token)
	require.NoError(t, err)
	_, err = env.call(failProcedure, token)
	require.Error(t, err)
	_, err = env.call(whoamiProcedure, "")
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(env.logs.String()), "\n")
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "level=INFO")
	assert.Contains(t, lines[0], "user_id="+user.ID)

	assert.Contains(t, lines[1], "level=ERROR")
	assert.Contains(t, lines[1], "code=internal")

	assert.Contains(t, lines[2], "level=WARN")
	assert.Contains(t, lines[2], "code=unauthenticated")
}
