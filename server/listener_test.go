package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/owenthereal/webterm/memlistener"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteAddrOver(t *testing.T, opt Opt, preamble string) string {
	t.Helper()

	name := "proxy-" + xid.New().String()
	ln, err := memlistener.Listen(name)
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.RemoteAddr)
	})}
	go func() { _ = srv.Serve(wrapListener(opt, ln)) }()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := memlistener.DialContext(context.Background(), "tcp", name)
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, preamble+"GET / HTTP/1.1\r\nHost: webterm\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}

func TestWrapListener_ProxyProtocol(t *testing.T) {
	opt := validOpt()
	opt.ProxyProtocol = true

	addr := remoteAddrOver(t, opt, "PROXY TCP4 203.0.113.7 10.0.0.1 41234 3000\r\n")
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", host)
	assert.Equal(t, "41234", port)
}

func TestWrapListener_Disabled(t *testing.T) {
	addr := remoteAddrOver(t, validOpt(), "")
	assert.NotEmpty(t, addr)
	assert.NotContains(t, addr, "203.0.113.7")
}
