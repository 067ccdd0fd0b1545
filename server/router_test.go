package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/owenthereal/webterm/auth"
	"github.com/owenthereal/webterm/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_StaticRequiresBasicAuth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>terminal</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("connect()"), 0o644))

	opt := validOpt()
	opt.StaticDir = dir
	s := &Server{Opt: opt}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	good := auth.Credentials{Username: "a", Password: "b"}.Encode()
	wrong := auth.Credentials{Username: "a", Password: "wrong"}.Encode()

	cases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "no header", path: "/", status: http.StatusUnauthorized, body: "Unauthorized"},
		{name: "wrong password", path: "/", header: "Basic " + wrong, status: http.StatusUnauthorized, body: "Unauthorized"},
		{name: "bearer", path: "/", header: "Bearer " + good, status: http.StatusUnauthorized, body: "Unauthorized"},
		{name: "index", path: "/", header: "Basic " + good, status: http.StatusOK, body: "<h1>terminal</h1>"},
		{name: "asset", path: "/app.js", header: "Basic " + good, status: http.StatusOK, body: "connect()"},
		{name: "missing file", path: "/nope.css", header: "Basic " + good, status: http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+c.path, nil)
			require.NoError(t, err)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, c.status, resp.StatusCode)
			assert.Equal(t, version.ServerHeader(), resp.Header.Get("Server"))

			if c.status == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="Web Terminal"`, resp.Header.Get("WWW-Authenticate"))
			}

			if c.body != "" {
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, c.body, strings.TrimSpace(string(b)))
			}
		})
	}
}

func TestRouter_UpgradeRouteUsesQueryAuth(t *testing.T) {
	opt := validOpt()
	opt.StaticDir = t.TempDir()
	s := &Server{Opt: opt}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// a Basic header does not open the terminal route
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic "+auth.Credentials{Username: "a", Password: "b"}.Encode())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("WWW-Authenticate"))
}
