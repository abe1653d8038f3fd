package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cashier/internal/remote"
)

type ssoServer struct {
	loginStatus    int
	step2Status    int
	helloLocation  string
	exchangeStatus int
}

func defaultSSO() *ssoServer {
	return &ssoServer{
		loginStatus:    http.StatusFound,
		step2Status:    http.StatusFound,
		helloLocation:  "/hello?token=intermediate",
		exchangeStatus: http.StatusOK,
	}
}

func (s *ssoServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "game", r.URL.Query().Get("from"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))

		if s.loginStatus == http.StatusFound {
			http.SetCookie(w, &http.Cookie{Name: "sso", Value: "1"})
			w.Header().Set("Location", "/step2")
		}
		w.WriteHeader(s.loginStatus)
	})
	mux.HandleFunc("/step2", func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("sso")
		assert.NoError(t, err, "session cookie should be carried to step 2")
		if s.step2Status == http.StatusFound {
			w.Header().Set("Location", s.helloLocation)
		}
		w.WriteHeader(s.step2Status)
	})
	mux.HandleFunc("/admin/auth/sso", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "intermediate", body["token"])
		w.WriteHeader(s.exchangeStatus)
		w.Write([]byte(`{"token":"final"}`))
	})
	mux.HandleFunc("/admin/companies/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer adm" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":42}`))
	})
	mux.HandleFunc("/admin/companies/42/operations/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer adm", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/admin/companies/42/operations/10":
			w.WriteHeader(http.StatusNoContent)
		case "/admin/companies/42/operations/11":
			w.WriteHeader(http.StatusNotFound)
		case "/admin/companies/42/operations/13":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	return mux
}

func newTestClient(t *testing.T, s *ssoServer, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	return New(Config{
		Site:        srv.URL + "/admin/",
		LoginURL:    srv.URL + "/login?from=game",
		TokenPath:   "auth/sso",
		CompanyPath: "companies/current",
		RemovePath:  "companies/%d/operations/%d",
		Timeout:     5 * time.Second,
	}, token, nil)
}

func TestLogin_ThreeHopFlow(t *testing.T) {
	c := newTestClient(t, defaultSSO(), "")

	token, err := c.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "final", token)
}

func TestLogin_UnexpectedHops(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *ssoServer)
	}{
		{"login not redirected", func(s *ssoServer) { s.loginStatus = http.StatusOK }},
		{"step2 not redirected", func(s *ssoServer) { s.step2Status = http.StatusUnauthorized }},
		{"no intermediate token", func(s *ssoServer) { s.helloLocation = "/hello" }},
		{"exchange rejected", func(s *ssoServer) { s.exchangeStatus = http.StatusForbidden }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSSO()
			tt.mutate(s)
			c := newTestClient(t, s, "")

			_, err := c.Login(context.Background(), "admin@example.com", "secret")
			require.Error(t, err)
			assert.True(t, remote.IsAuthError(err), "got %v", err)
		})
	}
}

func TestResolveCompanyID(t *testing.T) {
	c := newTestClient(t, defaultSSO(), "adm")

	id, err := c.ResolveCompanyID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	bad := newTestClient(t, defaultSSO(), "wrong")
	_, err = bad.ResolveCompanyID(context.Background())
	assert.True(t, remote.IsAuthError(err), "got %v", err)
}

func TestRemovePurchase(t *testing.T) {
	c := newTestClient(t, defaultSSO(), "adm")
	ctx := context.Background()

	status, err := c.RemovePurchase(ctx, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, remote.Removed, status)

	status, err = c.RemovePurchase(ctx, 42, 11)
	require.NoError(t, err)
	assert.Equal(t, remote.NotFound, status)

	_, err = c.RemovePurchase(ctx, 42, 12)
	require.Error(t, err)
	assert.True(t, remote.IsRemoteError(err))

	// An expired token is a session failure, not a per-purchase one.
	_, err = c.RemovePurchase(ctx, 42, 13)
	require.Error(t, err)
	assert.True(t, remote.IsAuthError(err), "got %v", err)
}

type memCache struct {
	ids  map[string]int64
	sets int
}

func (m *memCache) CompanyIDByToken(_ context.Context, token string) (int64, bool, error) {
	id, ok := m.ids[token]
	return id, ok, nil
}

func (m *memCache) SetCompanyID(_ context.Context, token string, id int64) error {
	m.ids[token] = id
	m.sets++
	return nil
}

func TestCompanyID_CachesResolvedValue(t *testing.T) {
	c := newTestClient(t, defaultSSO(), "adm")
	cache := &memCache{ids: map[string]int64{}}

	id, err := c.CompanyID(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, cache.sets)

	id, err = c.CompanyID(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, cache.sets, "second lookup should hit the cache")
}

func TestCompanyID_PrefersCache(t *testing.T) {
	c := newTestClient(t, defaultSSO(), "wrong")
	cache := &memCache{ids: map[string]int64{"wrong": 7}}

	id, err := c.CompanyID(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}
