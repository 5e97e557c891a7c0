package logging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid logentries token")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// QueuePolicy decides what Enqueue does when the event queue is full.
type QueuePolicy string

const (
	// PolicyBlock stalls the producer until the worker frees a slot.
	PolicyBlock QueuePolicy = "block"
	// PolicyDropNewest rejects the line being enqueued.
	PolicyDropNewest QueuePolicy = "drop-newest"
	// PolicyDropOldest evicts the head of the queue to make room.
	PolicyDropOldest QueuePolicy = "drop-oldest"
)

const (
	DefaultHost         = "api.logentries.com"
	DefaultPort         = 80
	DefaultTLSPort      = 443
	DefaultQueueSize    = 32768
	DefaultMinDelay     = 100 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultFlushTimeout = 10 * time.Second
	DefaultDialTimeout  = 10 * time.Second
)

// Config is the handler configuration. It is copied by value into every
// component and never modified after construction.
type Config struct {
	Token        string
	Host         string
	Port         int
	TLSPort      int
	UseTLS       bool
	CABundlePath string // PEM file; empty means system roots
	Verbose      bool
	FlushTimeout time.Duration

	QueueSize   int
	QueuePolicy QueuePolicy

	MinDelay     time.Duration
	MaxDelay     time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration // 0 disables the per-line write deadline
}

func DefaultConfig(token string) Config {
	return Config{
		Token:        token,
		Host:         DefaultHost,
		Port:         DefaultPort,
		TLSPort:      DefaultTLSPort,
		FlushTimeout: DefaultFlushTimeout,
		QueueSize:    DefaultQueueSize,
		QueuePolicy:  PolicyBlock,
		MinDelay:     DefaultMinDelay,
		MaxDelay:     DefaultMaxDelay,
		DialTimeout:  DefaultDialTimeout,
	}
}

// Address returns host:port of the endpoint selected by UseTLS.
func (c Config) Address() string {
	port := c.Port
	if c.UseTLS {
		port = c.TLSPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Validate reports token problems as ErrInvalidToken and everything else
// as ErrInvalidConfig.
func (c Config) Validate() error {
	if err := CheckToken(c.Token); err != nil {
		return err
	}
	if c.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 || c.TLSPort <= 0 || c.TLSPort > 65535 {
		return fmt.Errorf("%w: port out of range (plain=%d tls=%d)", ErrInvalidConfig, c.Port, c.TLSPort)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	switch c.QueuePolicy {
	case PolicyBlock, PolicyDropNewest, PolicyDropOldest:
	default:
		return fmt.Errorf("%w: unknown queue policy %q", ErrInvalidConfig, c.QueuePolicy)
	}
	if c.MinDelay <= 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("%w: delays must satisfy 0 < min <= max (min=%s max=%s)", ErrInvalidConfig, c.MinDelay, c.MaxDelay)
	}
	if c.FlushTimeout < 0 || c.DialTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// CheckToken accepts account tokens in the canonical UUID form.
func CheckToken(token string) error {
	if len(token) != 36 {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	if _, err := uuid.Parse(token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// Dialer opens a fresh connection to the collector. Implementations must
// honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// Submitter accepts already formatted, token-prefixed lines. A blocked
// SubmitContext returns once ctx is done.
type Submitter interface {
	Submit(line string)
	SubmitContext(ctx context.Context, line string)
}

// Core is the surface the slog adapter drives.
type Core interface {
	Submitter
	Start()
	Token() string
}
