package logentries

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

// NetDialer opens plain TCP or TLS connections to the configured endpoint.
type NetDialer struct {
	address   string
	timeout   time.Duration
	tlsConfig *tls.Config // nil for plain TCP
}

func NewNetDialer(config logging.Config) (*NetDialer, error) {
	d := &NetDialer{
		address: config.Address(),
		timeout: config.DialTimeout,
	}
	if !config.UseTLS {
		return d, nil
	}

	tlsConfig, err := newTLSConfig(config.Host, config.CABundlePath)
	if err != nil {
		return nil, err
	}
	d.tlsConfig = tlsConfig
	return d, nil
}

// newTLSConfig verifies the peer against caBundle (or the system roots) and
// lets crypto/tls negotiate the highest version both sides support.
func newTLSConfig(serverName, caBundle string) (*tls.Config, error) {
	config := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if caBundle == "" {
		return config, nil
	}

	pem, err := os.ReadFile(caBundle)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", caBundle)
	}
	config.RootCAs = pool
	return config, nil
}

func (d *NetDialer) Dial(ctx context.Context) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: d.timeout, KeepAlive: 30 * time.Second}

	if d.tlsConfig == nil {
		conn, err := netDialer.DialContext(ctx, "tcp", d.address)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", d.address, err)
		}
		return conn, nil
	}

	tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: d.tlsConfig}
	conn, err := tlsDialer.DialContext(ctx, "tcp", d.address)
	if err != nil {
		return nil, fmt.Errorf("failed to establish TLS connection to %s: %w", d.address, err)
	}
	return conn, nil
}

func (d *NetDialer) Address() string {
	return d.address
}
