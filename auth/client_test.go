package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/rbac-actions/types"
)

const testToken = "admin-jwt"

type fakeServer struct {
	*httptest.Server
	permissionCalls atomic.Int32
	checks          chan checkCall
}

type checkCall struct {
	locale string
	items  []CheckItem
}

func newFakeServer(t *testing.T, perms []types.Permission, answer []bool) *fakeServer {
	t.Helper()
	s := &fakeServer{checks: make(chan checkCall, 10)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+permissionsPath, func(w http.ResponseWriter, r *http.Request) {
		s.permissionCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(t, w, map[string]any{"data": perms})
	})
	mux.HandleFunc("POST "+checkPath, func(w http.ResponseWriter, r *http.Request) {
		req := checkRequest{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		s.checks <- checkCall{locale: r.URL.Query().Get("locale"), items: req.Permissions}
		writeJSON(t, w, map[string]any{"data": answer})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *ClientImpl {
	t.Helper()
	opts = append([]ClientOption{WithClientLogger(log.NewNopLogger())}, opts...)
	c, err := NewClient(ClientCfg{URL: url, Token: testToken}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingURL(t *testing.T) {
	_, err := NewClient(ClientCfg{})
	require.ErrorIs(t, err, ErrMissingConfig)
}

func TestClient_GetUserPermissions(t *testing.T) {
	perms := []types.Permission{
		{ID: 1, Action: "admin::roles.read"},
		{ID: 2, Action: "plugin::content-manager.explorer.create", Subject: "api::article.article", Properties: types.Properties{Fields: []string{"title"}, Locales: []string{"en", "fr"}}, Conditions: []string{"admin::is-creator"}},
	}
	server := newFakeServer(t, perms, nil)
	reg := prometheus.NewPedanticRegistry()
	c := newTestClient(t, server.URL, WithRegisterer(reg))

	got, err := c.GetUserPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, perms, got)

	// served from the cache
	got, err = c.GetUserPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, perms, got)
	require.Equal(t, int32(1), server.permissionCalls.Load())

	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.requests.WithLabelValues("permissions", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.cache.WithLabelValues("hit")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.cache.WithLabelValues("miss")))

	// fetched again once invalidated
	require.NoError(t, c.Invalidate(context.Background()))
	_, err = c.GetUserPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), server.permissionCalls.Load())
}

func TestClient_GetUserPermissions_Concurrent(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(t, w, map[string]any{"data": []types.Permission{{Action: "admin::roles.read"}}})
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perms, err := c.GetUserPermissions(context.Background())
			assert.NoError(t, err)
			assert.Len(t, perms, 1)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"data":null,"error":{"status":500,"name":"InternalServerError","message":"boom"}}`,
			wantErr: ErrUnexpectedStatus,
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "missing data",
			status:  http.StatusOK,
			body:    `{"data":null}`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "error in body",
			status:  http.StatusOK,
			body:    `{"error":{"status":400,"name":"ValidationError","message":"invalid"}}`,
			wantErr: ErrInvalidResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			c := newTestClient(t, server.URL)
			_, err := c.GetUserPermissions(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_CheckPermissions(t *testing.T) {
	server := newFakeServer(t, nil, []bool{true, false})
	c := newTestClient(t, server.URL)

	perms := []types.Permission{
		{Action: "plugin::content-manager.explorer.create", Subject: "api::article.article", Conditions: []string{"admin::is-creator"}},
		{Action: "admin::roles.read"},
	}

	ctx := types.WithLocale(context.Background(), "fr")
	got, err := c.CheckPermissions(ctx, perms)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, got)

	call := <-server.checks
	require.Equal(t, "fr", call.locale)
	require.Equal(t, []CheckItem{
		{Action: "plugin::content-manager.explorer.create", Subject: "api::article.article"},
		{Action: "admin::roles.read"},
	}, call.items)

	// no locale
	_, err = c.CheckPermissions(context.Background(), perms)
	require.NoError(t, err)
	call = <-server.checks
	require.Empty(t, call.locale)
}

func TestClient_CheckPermissions_Invalid(t *testing.T) {
	server := newFakeServer(t, nil, []bool{true})
	c := newTestClient(t, server.URL)

	_, err := c.CheckPermissions(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.CheckPermissions(context.Background(), []types.Permission{{Action: "admin::roles.read"}, {Action: "admin::roles.update"}})
	require.ErrorIs(t, err, ErrInvalidResponse)
}
