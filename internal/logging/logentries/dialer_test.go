package logentries

import (
	"context"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/LogentriesAgent/internal/testutils"
)

func tlsTestServer(t *testing.T) (host string, port int, caPath string) {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	addr := server.Listener.Addr().(*net.TCPAddr)
	caPath = filepath.Join(t.TempDir(), "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw}
	require.NoError(t, os.WriteFile(caPath, pem.EncodeToMemory(block), 0644))

	return addr.IP.String(), addr.Port, caPath
}

func TestNetDialer_PlainTCP(t *testing.T) {
	collector := testutils.NewCollector(t)
	config := makeTestConfig()
	config.Host = collector.Host()
	config.Port = collector.Port()

	dialer, err := NewNetDialer(config)
	require.NoError(t, err)
	assert.Equal(t, net.JoinHostPort(collector.Host(), strconv.Itoa(collector.Port())), dialer.Address())

	conn, err := dialer.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(Encode("hello"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		lines := collector.Lines()
		return len(lines) == 1 && lines[0] == "hello"
	}, time.Second, 5*time.Millisecond)
}

func TestNetDialer_TLSWithCABundle(t *testing.T) {
	host, port, caPath := tlsTestServer(t)

	config := makeTestConfig()
	config.Host = host
	config.TLSPort = port
	config.UseTLS = true
	config.CABundlePath = caPath

	dialer, err := NewNetDialer(config)
	require.NoError(t, err)

	conn, err := dialer.Dial(context.Background())
	require.NoError(t, err)
	conn.Close()
}

func TestNetDialer_TLSRejectsUnknownAuthority(t *testing.T) {
	host, port, _ := tlsTestServer(t)

	config := makeTestConfig()
	config.Host = host
	config.TLSPort = port
	config.UseTLS = true

	dialer, err := NewNetDialer(config)
	require.NoError(t, err)

	_, err = dialer.Dial(context.Background())
	assert.Error(t, err)
}

func TestNetDialer_BadCABundle(t *testing.T) {
	config := makeTestConfig()
	config.UseTLS = true

	config.CABundlePath = filepath.Join(t.TempDir(), "missing.pem")
	_, err := NewNetDialer(config)
	assert.ErrorContains(t, err, "failed to read CA bundle")

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not pem"), 0644))
	config.CABundlePath = empty
	_, err = NewNetDialer(config)
	assert.ErrorContains(t, err, "no certificates found")
}

func TestNetDialer_DialHonoursContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	config := makeTestConfig()
	config.Port = port

	dialer, err := NewNetDialer(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dialer.Dial(ctx)
	assert.Error(t, err)
}
