package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/validation"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

type testClients struct {
	auth    apiconnect.AuthServiceClient
	groups  apiconnect.GroupServiceClient
	expense apiconnect.ExpenseServiceClient
}

// setupTestServer serves every service over a fresh SQLite database with
// the same interceptors as the real server.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	validator := validation.New()
	sessions := auth.NewSessions(auth.NewJWTManager("test-secret", time.Hour), auth.NewMemoryRevocationList())
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	opts := connect.WithInterceptors(
		middleware.LoggingInterceptor(nil),
		middleware.RequireAuth(sessions, PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(authenticator, sessions, store, validator, nil), opts))
	mux.Handle(apiconnect.NewGroupServiceHandler(NewGroupService(store, validator), opts))
	mux.Handle(apiconnect.NewExpenseServiceHandler(NewExpenseService(store, validator), opts))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testClients{
		auth:    apiconnect.NewAuthServiceClient(server.Client(), server.URL),
		groups:  apiconnect.NewGroupServiceClient(server.Client(), server.URL),
		expense: apiconnect.NewExpenseServiceClient(server.Client(), server.URL),
	}
}

type testUser struct {
	*api.User
	token string
}

// register creates an account and returns it with its token.
func (c *testClients) register(t *testing.T, name string) *testUser {
	t.Helper()

	resp, err := c.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       name + "@example.com",
		DisplayName: name,
		Password:    "password123",
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", name, err)
	}
	return &testUser{User: resp.Msg.User, token: resp.Msg.Token}
}

// as attaches u's bearer token to a new request.
func as[T any](u *testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if u != nil {
		req.Header().Set("Authorization", "Bearer "+u.token)
	}
	return req
}

// createGroup makes a group owned by owner with the other users as members.
func (c *testClients) createGroup(t *testing.T, owner *testUser, name string, members ...*testUser) *api.Group {
	t.Helper()

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	resp, err := c.groups.CreateGroup(context.Background(), as(owner, &api.CreateGroupRequest{
		Name:      name,
		MemberIDs: ids,
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

func asConnectError(err error, target **connect.Error) bool {
	return errors.As(err, target)
}
