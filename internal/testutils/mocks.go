package testutils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var ErrMockWrite = errors.New("mock write failed")

// MemoryConn is an in-memory net.Conn that records every successful write
// into its Wire. FailWrites makes the next N writes fail without recording;
// FailAfter > 0 breaks the connection for good after that many writes.
type MemoryConn struct {
	Wire       *Wire
	FailWrites int
	FailAfter  int

	mu     sync.Mutex
	closed bool
	writes int
}

func (c *MemoryConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	if c.FailWrites > 0 {
		c.FailWrites--
		return 0, ErrMockWrite
	}
	if c.FailAfter > 0 && c.writes >= c.FailAfter {
		return 0, ErrMockWrite
	}
	c.writes++
	c.Wire.append(b)
	return len(b), nil
}

func (c *MemoryConn) Read(b []byte) (int, error) { return 0, errors.New("not supported") }

func (c *MemoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MemoryConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MemoryConn) LocalAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *MemoryConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *MemoryConn) SetDeadline(t time.Time) error      { return nil }
func (c *MemoryConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *MemoryConn) SetWriteDeadline(t time.Time) error { return nil }

// Wire collects the bytes written across all connections of a test.
type Wire struct {
	mu  sync.Mutex
	buf []byte
}

func (w *Wire) append(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, b...)
}

func (w *Wire) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf...)
}

// Lines splits the recorded bytes on '\n', dropping the terminators.
func (w *Wire) Lines() []string {
	s := strings.TrimSuffix(string(w.Bytes()), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// MockDialer hands out scripted connections. Each Dial consumes the next
// entry of Errors (nil means succeed) before falling back to a fresh
// MemoryConn on the shared Wire.
type MockDialer struct {
	Wire   *Wire
	Errors []error
	Conns  []*MemoryConn

	mu    sync.Mutex
	dials int
	made  []*MemoryConn
}

func NewMockDialer() *MockDialer {
	return &MockDialer{Wire: &Wire{}}
}

func (d *MockDialer) Dial(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++

	if len(d.Errors) > 0 {
		err := d.Errors[0]
		d.Errors = d.Errors[1:]
		if err != nil {
			return nil, err
		}
	}

	var conn *MemoryConn
	if len(d.Conns) > 0 {
		conn = d.Conns[0]
		d.Conns = d.Conns[1:]
		if conn.Wire == nil {
			conn.Wire = d.Wire
		}
	} else {
		conn = &MemoryConn{Wire: d.Wire}
	}
	d.made = append(d.made, conn)
	return conn, nil
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *MockDialer) Made() []*MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MemoryConn(nil), d.made...)
}

// BlockingDialer never connects; Dial waits for ctx.
type BlockingDialer struct{}

func (BlockingDialer) Dial(ctx context.Context) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Collector is a loopback TCP server that records every received line.
type Collector struct {
	listener net.Listener

	mu    sync.Mutex
	lines []string
	conns []net.Conn
	wg    sync.WaitGroup
}

func NewCollector(t *testing.T) *Collector {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	c := &Collector{listener: listener}
	c.wg.Add(1)
	go c.accept()
	t.Cleanup(c.Close)
	return c
}

func (c *Collector) accept() {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.conns = append(c.conns, conn)
		c.mu.Unlock()

		c.wg.Add(1)
		go c.read(conn)
	}
}

func (c *Collector) read(conn net.Conn) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		c.mu.Lock()
		c.lines = append(c.lines, scanner.Text())
		c.mu.Unlock()
	}
}

func (c *Collector) Host() string {
	return c.listener.Addr().(*net.TCPAddr).IP.String()
}

func (c *Collector) Port() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *Collector) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *Collector) Close() {
	_ = c.listener.Close()
	c.mu.Lock()
	for _, conn := range c.conns {
		_ = conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// MockCore records what the slog adapter hands to the pipeline.
type MockCore struct {
	TokenValue string

	mu         sync.Mutex
	Lines      []string
	StartCalls int
}

func (m *MockCore) Submit(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lines = append(m.Lines, line)
}

func (m *MockCore) SubmitContext(_ context.Context, line string) {
	m.Submit(line)
}

func (m *MockCore) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
}

func (m *MockCore) Token() string {
	return m.TokenValue
}

func (m *MockCore) GetStats() ([]string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Lines...), m.StartCalls
}

func CreateTempLogStructure(t *testing.T) string {
	tempDir := t.TempDir()

	structure := map[string]string{
		"web/access.log":           "GET /\nGET /health\n",
		"web/error.log":            "upstream timed out\n",
		"worker/jobs/queue.log":    "job 1 done\n",
		"worker/jobs/cron.log":     "tick\n",
		"db/postgres.log":          "checkpoint starting\n",
		"db/postgres.log.1":        "rotated\n",
		"misc/readme.txt":          "not a log\n",
		"misc/nested/deep/app.log": "deep\n",
	}

	for path, content := range structure {
		fullPath := filepath.Join(tempDir, path)
		dir := filepath.Dir(fullPath)

		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}

	return tempDir
}

// AppendLines appends lines to path, creating it if needed.
func AppendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
}
