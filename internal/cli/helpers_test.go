package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/batch"
	"github.com/roach88/cashier/internal/config"
	"github.com/roach88/cashier/internal/store"
)

// fakeRemote serves the cashier API, the SSO login pages and the admin API
// from one test server.
type fakeRemote struct {
	mu           sync.Mutex
	participants map[string]bool
	invalid      map[string]bool
	unavailable  map[string]bool // check answers 500
	missing      map[int64]bool  // removal answers 404
	failing      map[int64]bool  // removal answers 500
	nextID       int64
	removed      []int64
	companyCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		participants: map[string]bool{},
		invalid:      map[string]bool{},
		unavailable:  map[string]bool{},
		missing:      map[int64]bool{},
		failing:      map[int64]bool{},
		nextID:       100,
	}
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /cashier/auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"token":"cashier-token"}`))
	})
	mux.HandleFunc("GET /cashier/shared-action", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cashier-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errorCode":"unauthorized","message":"bad token"}`))
			return
		}
		phone := r.URL.Query().Get("promoCode")

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case f.unavailable[phone]:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{}`))
		case f.invalid[phone]:
			w.Write([]byte(`{"errorCode":"invalidPhone","message":"Invalid phone"}`))
		case f.participants[phone]:
			w.Write([]byte(`{"data":{"participant":true}}`))
		default:
			w.Write([]byte(`{"data":{"participant":false}}`))
		}
	})
	mux.HandleFunc("POST /cashier/operations/phone-purchase", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		id := f.nextID
		f.nextID++
		f.participants[body["phone"]] = true
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{"dateCreated": "2026-10-19T12:00:00Z", "id": id})
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusOK) // login form shown again
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sso", Value: "1"})
		w.Header().Set("Location", "/step2")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("GET /step2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/hello?token=intermediate")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("POST /admin/auth/sso", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"admin-token"}`))
	})
	mux.HandleFunc("GET /admin/companies/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.companyCalls++
		f.mu.Unlock()
		w.Write([]byte(`{"id":42}`))
	})
	mux.HandleFunc("DELETE /admin/companies/42/operations/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case f.missing[id]:
			w.WriteHeader(http.StatusNotFound)
		case f.failing[id]:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			f.removed = append(f.removed, id)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	return mux
}

func (f *fakeRemote) Removed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.removed...)
}

func (f *fakeRemote) CompanyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.companyCalls
}

// testEnv is a configured CLI against a fresh database and fake remote.
type testEnv struct {
	cfg    *config.Config
	remote *fakeRemote
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	remote := newFakeRemote()
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = filepath.Join(dir, "phones.db")
	cfg.Cashier.Site = srv.URL + "/cashier/"
	cfg.Admin.Site = srv.URL + "/admin/"
	cfg.Admin.LoginURL = srv.URL + "/login?from=game"
	cfg.HTTPTimeout = 5 * time.Second
	cfg.ProgressInterval = time.Hour

	return &testEnv{cfg: cfg, remote: remote, dir: dir}
}

// run executes the CLI with args and returns what it wrote.
func (e *testEnv) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return execute(t, &RootOptions{
		Config: e.cfg,
		Logger: zap.NewNop(),
		RunIDs: batch.NewFixedGenerator("run-1", "run-2"),
	}, args...)
}

func execute(t *testing.T, opts *RootOptions, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand(opts)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// openStore opens the env database directly for setup and inspection.
func openStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// mustRun is run for commands expected to succeed.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := e.run(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return stdout
}

// writePhones writes lines to a file in the env directory.
func (e *testEnv) writePhones(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(e.dir, "phones.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}
